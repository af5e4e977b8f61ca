package tlb

import (
	"errors"
	"fmt"
)

// ErrDecode means a cell could not be interpreted as the named schema type:
// a constructor tag did not match, a variant is not supported, or the data
// ran out. Reason is either a descriptive error or the underlying cell error.
type ErrDecode struct {
	Type   string
	Reason error
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Type, e.Reason)
}

// Unwrap returns the underlying reason.
func (e ErrDecode) Unwrap() error {
	return e.Reason
}

func decodeErr(typ string, err error) error {
	var de ErrDecode
	if errors.As(err, &de) && de.Type == typ {
		return err
	}
	return ErrDecode{Type: typ, Reason: err}
}

func decodeErrf(typ, format string, args ...interface{}) error {
	return ErrDecode{Type: typ, Reason: fmt.Errorf(format, args...)}
}

func checkTag(typ string, got, want uint64, bits int) error {
	if got != want {
		return decodeErrf(typ, "tag %0*x, expected %0*x", (bits+3)/4, got, (bits+3)/4, want)
	}
	return nil
}
