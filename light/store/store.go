package store

import (
	"errors"

	"github.com/tonlight/tonlight/types"
)

// ErrTrustedStateNotFound is returned when a store does not have the
// requested trusted state.
var ErrTrustedStateNotFound = errors.New("trusted state not found")

// Store is anything that can persistently store trusted states, keyed by the
// seqno of the key block that installed them.
type Store interface {
	// SaveTrustedState saves ts under ts.Seqno, replacing any state already
	// stored there.
	SaveTrustedState(ts *types.TrustedState) error

	// DeleteTrustedState deletes the state stored under seqno.
	DeleteTrustedState(seqno uint32) error

	// TrustedState returns the state stored under seqno.
	//
	// If it is not found, ErrTrustedStateNotFound is returned.
	TrustedState(seqno uint32) (*types.TrustedState, error)

	// LastTrustedState returns the state with the highest seqno.
	//
	// If the store is empty, ErrTrustedStateNotFound is returned.
	LastTrustedState() (*types.TrustedState, error)

	// Prune removes the oldest states until at most size remain.
	Prune(size uint16) error

	// Size returns the number of stored states.
	Size() uint16
}
