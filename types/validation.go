package types

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/tonlight/tonlight/crypto/ed25519"
)

// TallyMode selects how signatures add up towards the quorum.
type TallyMode uint8

const (
	// TallyValidatorWeight adds each distinct signer's own weight.
	TallyValidatorWeight TallyMode = iota
	// TallyTotalWeight adds the set's total weight for every valid
	// signature, as the deployed light client contract does. A single valid
	// signature from any member then meets the quorum.
	TallyTotalWeight
)

func (m TallyMode) String() string {
	switch m {
	case TallyValidatorWeight:
		return "validator"
	case TallyTotalWeight:
		return "total"
	default:
		return fmt.Sprintf("TallyMode(%d)", uint8(m))
	}
}

// ParseTallyMode parses the String form of a TallyMode.
func ParseTallyMode(s string) (TallyMode, error) {
	switch s {
	case "validator", "":
		return TallyValidatorWeight, nil
	case "total":
		return TallyTotalWeight, nil
	default:
		return 0, fmt.Errorf("unknown tally mode %q (want validator or total)", s)
	}
}

// QuorumThreshold returns two thirds of total, rounded down. The tallied
// weight must be strictly above it.
func QuorumThreshold(total uint64) uint64 {
	hi, lo := bits.Mul64(total, 2)
	q, _ := bits.Div64(hi, lo, 3)
	return q
}

// VerifySignatures checks that sigs carry more than two thirds of the weight
// of vals for the block with the given root and file hashes.
//
// Every listed signature is checked, including those past the point where
// the quorum is met. A signature by a node outside the set fails with
// ErrUnknownSigner and one that does not verify fails with
// ErrInvalidSignature; the first failing entry in list order is reported. A
// signer listed twice counts once.
func VerifySignatures(vals *ValidatorSet, rootHash, fileHash []byte, sigs SignatureMap, mode TallyMode) error {
	if vals == nil {
		return errors.New("nil validator set")
	}

	var (
		msg    = BlockSignBytes(rootHash, fileHash)
		needed = QuorumThreshold(vals.TotalWeight())
		tally  uint64
		seen   = make(map[int]bool, len(sigs))

		bv = ed25519.NewBatchVerifier()
		// positions maps batch entries back to their index in sigs.
		positions []int
		// stop is the first signature that failed before verification.
		stop    error
		stopPos = len(sigs)
	)

	for i, sig := range sigs {
		idx, val := vals.GetByNodeID(sig.NodeIDShort)
		if val == nil {
			if stop == nil {
				stop, stopPos = ErrUnknownSigner{NodeID: sig.NodeIDShort}, i
			}
			continue
		}
		if err := bv.Add(val.PubKey, msg, sig.Signature); err != nil {
			if stop == nil {
				stop, stopPos = ErrInvalidSignature{NodeID: sig.NodeIDShort}, i
			}
			continue
		}
		positions = append(positions, i)

		if tally > needed {
			continue
		}
		switch mode {
		case TallyTotalWeight:
			tally = addWeight(tally, vals.TotalWeight())
		default:
			if !seen[idx] {
				seen[idx] = true
				tally = addWeight(tally, val.Weight)
			}
		}
	}

	if len(positions) > 0 {
		if ok, valid := bv.Verify(); !ok {
			for j, v := range valid {
				if !v && positions[j] < stopPos {
					return ErrInvalidSignature{NodeID: sigs[positions[j]].NodeIDShort}
				}
			}
		}
	}
	if stop != nil {
		return stop
	}
	if tally <= needed {
		return ErrQuorumNotMet{Got: tally, Needed: needed}
	}
	return nil
}

func addWeight(tally, w uint64) uint64 {
	if tally > math.MaxUint64-w {
		return math.MaxUint64
	}
	return tally + w
}
