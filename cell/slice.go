package cell

import (
	"fmt"
	"math/big"
)

// Slice is a read cursor over the bits and references of a cell. Every load
// consumes data in order and fails with ErrMalformedData instead of reading
// past the end.
type Slice struct {
	bits   BitString
	refs   []*Cell
	bitPos int
	refPos int
}

func newSlice(bits BitString, refs []*Cell) *Slice {
	return &Slice{bits: bits, refs: refs}
}

// BitsLeft returns the number of unread bits.
func (s *Slice) BitsLeft() int { return s.bits.Len() - s.bitPos }

// RefsLeft returns the number of unread references.
func (s *Slice) RefsLeft() int { return len(s.refs) - s.refPos }

func (s *Slice) need(n int) error {
	if n < 0 || n > s.BitsLeft() {
		return fmt.Errorf("%w: need %d bits, %d left", ErrMalformedData, n, s.BitsLeft())
	}
	return nil
}

// LoadBit reads a single bit.
func (s *Slice) LoadBit() (bool, error) {
	if err := s.need(1); err != nil {
		return false, err
	}
	b := s.bits.Bit(s.bitPos)
	s.bitPos++
	return b, nil
}

// LoadUint reads an unsigned big-endian integer of n <= 64 bits.
func (s *Slice) LoadUint(n int) (uint64, error) {
	v, err := s.PreloadUint(n)
	if err != nil {
		return 0, err
	}
	s.bitPos += n
	return v, nil
}

// PreloadUint is like LoadUint but does not advance the cursor.
func (s *Slice) PreloadUint(n int) (uint64, error) {
	if n > 64 {
		return 0, fmt.Errorf("%w: %d-bit integer does not fit uint64", ErrMalformedData, n)
	}
	if err := s.need(n); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < n; i++ {
		v <<= 1
		if s.bits.Bit(s.bitPos + i) {
			v |= 1
		}
	}
	return v, nil
}

// LoadInt reads a signed two's complement integer of n <= 64 bits.
func (s *Slice) LoadInt(n int) (int64, error) {
	v, err := s.LoadUint(n)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if n < 64 && v&(1<<uint(n-1)) != 0 {
		v |= ^uint64(0) << uint(n)
	}
	return int64(v), nil
}

// LoadBigUint reads an unsigned integer of arbitrary width.
func (s *Slice) LoadBigUint(n int) (*big.Int, error) {
	bs, err := s.LoadBits(n)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(bs.Bytes())
	if rem := n % 8; rem != 0 {
		v.Rsh(v, uint(8-rem))
	}
	return v, nil
}

// LoadVarUint reads a VarUInteger: a lenBits-wide byte count followed by
// that many bytes.
func (s *Slice) LoadVarUint(lenBits int) (*big.Int, error) {
	n, err := s.LoadUint(lenBits)
	if err != nil {
		return nil, err
	}
	return s.LoadBigUint(int(n) * 8)
}

// LoadBits reads n bits.
func (s *Slice) LoadBits(n int) (BitString, error) {
	if err := s.need(n); err != nil {
		return BitString{}, err
	}
	out, err := s.bits.Sub(s.bitPos, n)
	if err != nil {
		return BitString{}, err
	}
	s.bitPos += n
	return out, nil
}

// LoadBytes reads n whole bytes.
func (s *Slice) LoadBytes(n int) ([]byte, error) {
	bs, err := s.LoadBits(n * 8)
	if err != nil {
		return nil, err
	}
	return bs.data, nil
}

// Skip drops n bits.
func (s *Slice) Skip(n int) error {
	if err := s.need(n); err != nil {
		return err
	}
	s.bitPos += n
	return nil
}

// LoadRef returns the next child.
func (s *Slice) LoadRef() (*Cell, error) {
	if s.RefsLeft() < 1 {
		return nil, fmt.Errorf("%w: no references left", ErrMalformedData)
	}
	r := s.refs[s.refPos]
	s.refPos++
	return r, nil
}

// LoadMaybeRef reads a presence bit and, when set, the next child. A nil cell
// with a nil error means the reference is absent.
func (s *Slice) LoadMaybeRef() (*Cell, error) {
	present, err := s.LoadBit()
	if err != nil || !present {
		return nil, err
	}
	return s.LoadRef()
}

// LoadRefSlice loads the next child and begins parsing it.
func (s *Slice) LoadRefSlice() (*Slice, error) {
	r, err := s.LoadRef()
	if err != nil {
		return nil, err
	}
	return r.BeginParse()
}

// RemainingBits returns the unread bits without consuming them.
func (s *Slice) RemainingBits() BitString {
	out, _ := s.bits.Sub(s.bitPos, s.BitsLeft())
	return out
}

// RemainingRefs returns the unread children without consuming them.
func (s *Slice) RemainingRefs() []*Cell {
	out := make([]*Cell, s.RefsLeft())
	copy(out, s.refs[s.refPos:])
	return out
}

// Copy returns an independent cursor at the same position.
func (s *Slice) Copy() *Slice {
	c := *s
	return &c
}

// ToCell materializes the unread part of the slice as a new ordinary cell.
func (s *Slice) ToCell() (*Cell, error) {
	return New(s.RemainingBits(), s.RemainingRefs()...)
}

// EnsureEmpty fails unless every bit and reference has been consumed.
func (s *Slice) EnsureEmpty() error {
	if s.BitsLeft() != 0 || s.RefsLeft() != 0 {
		return fmt.Errorf("%w: %d bits and %d refs left unread", ErrMalformedData, s.BitsLeft(), s.RefsLeft())
	}
	return nil
}
