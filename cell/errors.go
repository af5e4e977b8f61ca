package cell

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedData is returned when bytes or bits cannot be interpreted as
	// a cell: a cursor over-read, a wrong number of references, a bad exotic
	// cell layout or a corrupt bag of cells. Errors from this package wrap it.
	ErrMalformedData = errors.New("malformed data")

	// ErrCellOverflow is returned when a builder is asked to hold more than
	// MaxBits bits or MaxRefs references.
	ErrCellOverflow = errors.New("cell overflow")
)

// ErrExoticCell is returned when a caller tries to read the data or the
// children of an exotic cell through the ordinary interface.
type ErrExoticCell struct {
	Type Type
}

func (e ErrExoticCell) Error() string {
	return fmt.Sprintf("cannot read %v cell as ordinary", e.Type)
}

// Is makes errors.Is(err, ErrMalformedData) hold for exotic access failures.
func (e ErrExoticCell) Is(target error) bool {
	return target == ErrMalformedData
}
