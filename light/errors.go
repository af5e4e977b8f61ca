package light

import (
	"errors"
	"fmt"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/tlb"
	"github.com/tonlight/tonlight/types"
)

// ErrWrongNetwork means the block belongs to another network than the one
// the client tracks.
type ErrWrongNetwork struct {
	Expected int32
	Got      int32
}

func (e ErrWrongNetwork) Error() string {
	return fmt.Sprintf("expected network %d, got block of network %d", e.Expected, e.Got)
}

// ErrNotMasterchain means the block is a shardchain block.
type ErrNotMasterchain struct {
	Seqno uint32
}

func (e ErrNotMasterchain) Error() string {
	return fmt.Sprintf("block #%d is not a masterchain block", e.Seqno)
}

// ErrNotKeyBlock means a key block was expected.
type ErrNotKeyBlock struct {
	Seqno uint32
}

func (e ErrNotKeyBlock) Error() string {
	return fmt.Sprintf("block #%d is not a key block", e.Seqno)
}

// ErrSeqnoMismatch means the block does not follow the trusted key block:
// its prev_key_block_seqno is not the trusted seqno, or it is a key block
// whose own seqno is not above the trusted one.
type ErrSeqnoMismatch struct {
	Expected uint32
	Got      uint32
}

func (e ErrSeqnoMismatch) Error() string {
	return fmt.Sprintf("seqno mismatch: trusted key block is #%d, block gives #%d", e.Expected, e.Got)
}

// ErrHashMismatch means a proof or a block id does not describe the block it
// is presented with.
type ErrHashMismatch struct {
	Expected []byte
	Got      []byte
}

func (e ErrHashMismatch) Error() string {
	return fmt.Sprintf("hash mismatch: expected %X, got %X", e.Expected, e.Got)
}

// ErrTransactionNotFound means the proof does not contain the transaction.
type ErrTransactionNotFound struct {
	Hash []byte
}

func (e ErrTransactionNotFound) Error() string {
	return fmt.Sprintf("transaction %X not found in proof", e.Hash)
}

// ErrInvalidBlock means the block a transaction proof refers to did not pass
// CheckBlock.
type ErrInvalidBlock struct {
	Reason error
}

func (e ErrInvalidBlock) Error() string {
	return fmt.Sprintf("invalid block: %v", e.Reason)
}

// Unwrap returns underlying reason.
func (e ErrInvalidBlock) Unwrap() error {
	return e.Reason
}

// ErrVerificationFailed means syncing failed to apply the key block #Seqno.
type ErrVerificationFailed struct {
	Seqno  uint32
	Reason error
}

// Unwrap returns underlying reason.
func (e ErrVerificationFailed) Unwrap() error {
	return e.Reason
}

func (e ErrVerificationFailed) Error() string {
	return fmt.Sprintf("verify key block #%d failed: %v", e.Seqno, e.Reason)
}

// errorReason names the class of err for metrics labels.
func errorReason(err error) string {
	var (
		decodeErr      tlb.ErrDecode
		wrongNetwork   ErrWrongNetwork
		notMaster      ErrNotMasterchain
		notKey         ErrNotKeyBlock
		seqnoMismatch  ErrSeqnoMismatch
		hashMismatch   ErrHashMismatch
		txNotFound     ErrTransactionNotFound
		configMissing  types.ErrConfigMissing
		unsupportedSet types.ErrUnsupportedValidatorSet
		duplicate      types.ErrDuplicateValidator
		totalWeight    types.ErrInvalidTotalWeight
		unknownSigner  types.ErrUnknownSigner
		invalidSig     types.ErrInvalidSignature
		quorumNotMet   types.ErrQuorumNotMet
	)
	switch {
	case errors.As(err, &wrongNetwork):
		return "wrong_network"
	case errors.As(err, &notMaster):
		return "not_masterchain"
	case errors.As(err, &notKey):
		return "not_key_block"
	case errors.As(err, &seqnoMismatch):
		return "seqno_mismatch"
	case errors.As(err, &hashMismatch):
		return "hash_mismatch"
	case errors.As(err, &txNotFound):
		return "transaction_not_found"
	case errors.As(err, &configMissing):
		return "config_missing"
	case errors.As(err, &unsupportedSet), errors.As(err, &duplicate), errors.As(err, &totalWeight):
		return "invalid_validator_set"
	case errors.As(err, &unknownSigner):
		return "unknown_signer"
	case errors.As(err, &invalidSig):
		return "invalid_signature"
	case errors.As(err, &quorumNotMet):
		return "quorum_not_met"
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.Is(err, cell.ErrMalformedData):
		return "malformed_data"
	default:
		return "other"
	}
}
