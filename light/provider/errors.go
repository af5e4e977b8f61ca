package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrBlockNotFound is returned when a provider can't find the requested
	// block or its signatures.
	ErrBlockNotFound = errors.New("block not found")
	// ErrNoResponse is returned if the provider doesn't respond to the
	// request in a given time
	ErrNoResponse = errors.New("client failed to respond")
)

// ErrBadResponse is returned when a provider answers with something that
// cannot be decoded.
type ErrBadResponse struct {
	Reason error
}

func (e ErrBadResponse) Error() string {
	return fmt.Sprintf("provider sent a bad response: %s", e.Reason.Error())
}

func (e ErrBadResponse) Unwrap() error {
	return e.Reason
}
