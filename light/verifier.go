package light

import (
	"errors"
	"fmt"

	"github.com/tonlight/tonlight/tlb"
	"github.com/tonlight/tonlight/types"
)

// VerifyBlock checks that pb is a masterchain block of the network trusted by
// ts, linked to the trusted key block, and signed by more than two thirds of
// the trusted validator set. It returns the decoded block.
//
// Checks run in order: decoding, network, masterchain, chain linkage and
// signatures. The first failure is returned.
func VerifyBlock(ts *types.TrustedState, pb *types.ProvableBlock, mode types.TallyMode) (*tlb.Block, error) {
	return verifyBlock(ts, pb, mode, false)
}

// VerifyKeyBlock verifies pb as VerifyBlock does, and additionally requires
// it to be a key block. It returns the state pb installs: the validator set
// from its configuration, trusted at its seqno.
//
// If verifyTotalWeight is true, a set whose member weights add up to more
// than its declared total weight is rejected.
func VerifyKeyBlock(
	ts *types.TrustedState,
	pb *types.ProvableBlock,
	mode types.TallyMode,
	verifyTotalWeight bool,
) (*types.TrustedState, error) {
	block, err := verifyBlock(ts, pb, mode, true)
	if err != nil {
		return nil, err
	}

	vals, err := types.NewValidatorSet(block)
	if err != nil {
		return nil, fmt.Errorf("extract validator set: %w", err)
	}
	if verifyTotalWeight {
		if err := vals.ValidateBasic(); err != nil {
			return nil, fmt.Errorf("validator set of block #%d: %w", block.Info.SeqNo, err)
		}
	}

	return &types.TrustedState{
		GlobalID:   ts.GlobalID,
		Seqno:      block.Info.SeqNo,
		Validators: vals,
	}, nil
}

func verifyBlock(ts *types.TrustedState, pb *types.ProvableBlock, mode types.TallyMode, keyBlock bool) (*tlb.Block, error) {
	if pb == nil {
		return nil, errors.New("nil provable block")
	}
	if err := pb.Block.ValidateBasic(); err != nil {
		return nil, err
	}

	block, err := pb.Block.Block()
	if err != nil {
		return nil, err
	}
	if err := validateMasterchainBlock(ts, block, keyBlock); err != nil {
		return nil, err
	}

	rootHash, err := pb.Block.RootHash()
	if err != nil {
		return nil, err
	}
	if err := types.VerifySignatures(ts.Validators, rootHash, pb.Block.FileHash, pb.Signatures, mode); err != nil {
		return nil, err
	}
	return block, nil
}

func validateMasterchainBlock(ts *types.TrustedState, block *tlb.Block, keyBlock bool) error {
	if block.GlobalID != ts.GlobalID {
		return ErrWrongNetwork{Expected: ts.GlobalID, Got: block.GlobalID}
	}
	if block.Info.NotMaster {
		return ErrNotMasterchain{Seqno: block.Info.SeqNo}
	}
	if keyBlock && !block.Info.KeyBlock {
		return ErrNotKeyBlock{Seqno: block.Info.SeqNo}
	}
	if block.Info.PrevKeyBlockSeqno != ts.Seqno {
		return ErrSeqnoMismatch{Expected: ts.Seqno, Got: block.Info.PrevKeyBlockSeqno}
	}
	// The trusted seqno only moves forward.
	if keyBlock && block.Info.SeqNo <= ts.Seqno {
		return ErrSeqnoMismatch{Expected: ts.Seqno, Got: block.Info.SeqNo}
	}
	return nil
}
