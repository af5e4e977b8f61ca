package types

import (
	"fmt"
)

// ErrConfigMissing means a key block does not carry the configuration
// parameter the validator set is read from.
type ErrConfigMissing struct {
	Index uint32
}

func (e ErrConfigMissing) Error() string {
	if e.Index == 0 {
		return "block carries no configuration"
	}
	return fmt.Sprintf("block configuration has no parameter %d", e.Index)
}

// ErrUnsupportedValidatorSet means the configured validator set uses a
// variant other than validators_ext.
type ErrUnsupportedValidatorSet struct {
	Tag uint64
}

func (e ErrUnsupportedValidatorSet) Error() string {
	return fmt.Sprintf("unsupported validator set variant #%02x", e.Tag)
}

// ErrDuplicateValidator means two members of a set share a short node id.
type ErrDuplicateValidator struct {
	NodeID []byte
}

func (e ErrDuplicateValidator) Error() string {
	return fmt.Sprintf("duplicate validator %X", e.NodeID)
}

// ErrInvalidTotalWeight means the members of a set weigh more than the set's
// declared total weight.
type ErrInvalidTotalWeight struct {
	Sum   uint64
	Total uint64
}

func (e ErrInvalidTotalWeight) Error() string {
	return fmt.Sprintf("validator weights sum to %d, above total weight %d", e.Sum, e.Total)
}

// ErrUnknownSigner means a signature names a node id that is not a member of
// the validator set.
type ErrUnknownSigner struct {
	NodeID []byte
}

func (e ErrUnknownSigner) Error() string {
	return fmt.Sprintf("signature from unknown validator %X", e.NodeID)
}

// ErrInvalidSignature means a member's signature does not verify against
// its public key.
type ErrInvalidSignature struct {
	NodeID []byte
}

func (e ErrInvalidSignature) Error() string {
	return fmt.Sprintf("invalid signature from validator %X", e.NodeID)
}

// ErrQuorumNotMet is returned when not enough weight has signed a block.
type ErrQuorumNotMet struct {
	Got    uint64
	Needed uint64
}

func (e ErrQuorumNotMet) Error() string {
	return fmt.Sprintf("invalid signatures: tallied weight %d, need more than %d", e.Got, e.Needed)
}
