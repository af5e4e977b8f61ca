package cell

import (
	"fmt"
	"math/big"
)

// Builder accumulates bits and references for a new cell. The first failing
// store is remembered and returned by EndCell, so stores can be chained
// without checking each one.
type Builder struct {
	data []byte
	bits int
	refs []*Cell
	err  error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{data: make([]byte, 0, (MaxBits+7)/8)}
}

// BitsUsed returns the number of bits stored so far.
func (b *Builder) BitsUsed() int { return b.bits }

// RefsUsed returns the number of references stored so far.
func (b *Builder) RefsUsed() int { return len(b.refs) }

// Err returns the first error encountered by a store, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) reserve(n int) bool {
	if b.err != nil {
		return false
	}
	if n < 0 || b.bits+n > MaxBits {
		b.fail(fmt.Errorf("%w: storing %d bits on top of %d", ErrCellOverflow, n, b.bits))
		return false
	}
	return true
}

func (b *Builder) appendBit(bit bool) {
	if b.bits%8 == 0 {
		b.data = append(b.data, 0)
	}
	if bit {
		b.data[b.bits/8] |= 0x80 >> (uint(b.bits) % 8)
	}
	b.bits++
}

// StoreBit appends one bit.
func (b *Builder) StoreBit(bit bool) *Builder {
	if b.reserve(1) {
		b.appendBit(bit)
	}
	return b
}

// StoreUint appends v as an unsigned big-endian integer of n <= 64 bits.
func (b *Builder) StoreUint(v uint64, n int) *Builder {
	if n > 64 || (n < 64 && v>>uint(n) != 0) {
		return b.fail(fmt.Errorf("%w: value %d does not fit in %d bits", ErrCellOverflow, v, n))
	}
	if b.reserve(n) {
		for i := n - 1; i >= 0; i-- {
			b.appendBit(v>>uint(i)&1 == 1)
		}
	}
	return b
}

// StoreInt appends v as a two's complement integer of n <= 64 bits.
func (b *Builder) StoreInt(v int64, n int) *Builder {
	if n < 64 && n > 0 {
		limit := int64(1) << uint(n-1)
		if v < -limit || v >= limit {
			return b.fail(fmt.Errorf("%w: value %d does not fit in %d signed bits", ErrCellOverflow, v, n))
		}
		return b.StoreUint(uint64(v)&(1<<uint(n)-1), n)
	}
	return b.StoreUint(uint64(v), n)
}

// StoreBigUint appends a non-negative integer of arbitrary width.
func (b *Builder) StoreBigUint(v *big.Int, n int) *Builder {
	if v.Sign() < 0 || v.BitLen() > n {
		return b.fail(fmt.Errorf("%w: value %v does not fit in %d bits", ErrCellOverflow, v, n))
	}
	if b.reserve(n) {
		for i := n - 1; i >= 0; i-- {
			b.appendBit(v.Bit(i) == 1)
		}
	}
	return b
}

// StoreVarUint appends a VarUInteger with a lenBits-wide byte count.
func (b *Builder) StoreVarUint(v *big.Int, lenBits int) *Builder {
	n := (v.BitLen() + 7) / 8
	if n >= 1<<uint(lenBits) {
		return b.fail(fmt.Errorf("%w: %d-byte value for %d-bit length", ErrCellOverflow, n, lenBits))
	}
	b.StoreUint(uint64(n), lenBits)
	return b.StoreBigUint(v, n*8)
}

// StoreBytes appends whole bytes.
func (b *Builder) StoreBytes(p []byte) *Builder {
	return b.StoreBits(BitStringFromBytes(p))
}

// StoreBits appends a bit string.
func (b *Builder) StoreBits(bs BitString) *Builder {
	if b.reserve(bs.Len()) {
		for i := 0; i < bs.Len(); i++ {
			b.appendBit(bs.Bit(i))
		}
	}
	return b
}

// StoreRef appends a child reference.
func (b *Builder) StoreRef(c *Cell) *Builder {
	if b.err != nil {
		return b
	}
	if c == nil {
		return b.fail(fmt.Errorf("%w: nil reference", ErrMalformedData))
	}
	if len(b.refs) >= MaxRefs {
		return b.fail(fmt.Errorf("%w: more than %d refs", ErrCellOverflow, MaxRefs))
	}
	b.refs = append(b.refs, c)
	return b
}

// StoreMaybeRef appends a presence bit and, when c is not nil, the reference.
func (b *Builder) StoreMaybeRef(c *Cell) *Builder {
	b.StoreBit(c != nil)
	if c != nil {
		b.StoreRef(c)
	}
	return b
}

// StoreSlice appends everything left unread in s.
func (b *Builder) StoreSlice(s *Slice) *Builder {
	b.StoreBits(s.RemainingBits())
	for _, r := range s.RemainingRefs() {
		b.StoreRef(r)
	}
	return b
}

func (b *Builder) bitString() BitString {
	return BitString{data: append([]byte(nil), b.data...), length: b.bits}
}

// EndCell finishes an ordinary cell.
func (b *Builder) EndCell() (*Cell, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.bitString(), b.refs...)
}

// EndExoticCell finishes an exotic cell; its type is taken from the first
// stored byte.
func (b *Builder) EndExoticCell() (*Cell, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewExotic(b.bitString(), b.refs...)
}
