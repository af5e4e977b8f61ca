package cell

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxBits is the maximum number of data bits a single cell can carry.
const MaxBits = 1023

// BitString is an immutable, fixed-length sequence of bits. Bits are stored
// big-endian: bit 0 is the most significant bit of the first byte.
type BitString struct {
	data   []byte
	length int
}

// NewBitString returns a BitString made of the first length bits of data.
// Bits of data past length are ignored.
func NewBitString(data []byte, length int) (BitString, error) {
	if length < 0 || length > len(data)*8 {
		return BitString{}, fmt.Errorf("%w: bit length %d exceeds %d available bits",
			ErrMalformedData, length, len(data)*8)
	}
	buf := make([]byte, (length+7)/8)
	copy(buf, data)
	clearTail(buf, length)
	return BitString{data: buf, length: length}, nil
}

// BitStringFromBytes returns a BitString holding all bits of b.
func BitStringFromBytes(b []byte) BitString {
	buf := make([]byte, len(b))
	copy(buf, b)
	return BitString{data: buf, length: len(b) * 8}
}

// Len returns the number of bits.
func (b BitString) Len() int { return b.length }

// Bit returns the i-th bit. It panics if i is out of range, like a slice index.
func (b BitString) Bit(i int) bool {
	if i < 0 || i >= b.length {
		panic(fmt.Sprintf("bit index %d out of range [0, %d)", i, b.length))
	}
	return b.data[i/8]&(0x80>>(uint(i)%8)) != 0
}

// Bytes returns a copy of the underlying bytes. Unused bits of the last byte
// are zero.
func (b BitString) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Sub returns length bits starting at offset. It never reads past Len.
func (b BitString) Sub(offset, length int) (BitString, error) {
	if offset < 0 || length < 0 || offset+length > b.length {
		return BitString{}, fmt.Errorf("%w: sub-range [%d, %d) of %d bits",
			ErrMalformedData, offset, offset+length, b.length)
	}
	out := make([]byte, (length+7)/8)
	for i := 0; i < length; i++ {
		if b.Bit(offset + i) {
			out[i/8] |= 0x80 >> (uint(i) % 8)
		}
	}
	return BitString{data: out, length: length}, nil
}

// Append returns a new BitString holding b followed by o.
func (b BitString) Append(o BitString) BitString {
	out := make([]byte, (b.length+o.length+7)/8)
	copy(out, b.data)
	for i := 0; i < o.length; i++ {
		if o.Bit(i) {
			j := b.length + i
			out[j/8] |= 0x80 >> (uint(j) % 8)
		}
	}
	return BitString{data: out, length: b.length + o.length}
}

// AppendBit returns a new BitString holding b followed by bit.
func (b BitString) AppendBit(bit bool) BitString {
	out := make([]byte, (b.length+8)/8)
	copy(out, b.data)
	if bit {
		out[b.length/8] |= 0x80 >> (uint(b.length) % 8)
	}
	return BitString{data: out, length: b.length + 1}
}

// Equal reports whether b and o hold the same bits.
func (b BitString) Equal(o BitString) bool {
	if b.length != o.length {
		return false
	}
	for i := range b.data {
		if b.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// paddedBytes returns the bits with the completion tag appended when the
// length is not a multiple of eight, as used in representation hashes and
// bag-of-cells encoding.
func (b BitString) paddedBytes() []byte {
	out := b.Bytes()
	if b.length%8 != 0 {
		out[b.length/8] |= 0x80 >> (uint(b.length) % 8)
	}
	return out
}

// descriptor returns the d2 byte of a cell holding these bits.
func (b BitString) descriptor() byte {
	return byte(b.length/8 + (b.length+7)/8)
}

// String returns the bits in the fift hex notation, with a trailing "_" when
// the length is not a multiple of four.
func (b BitString) String() string {
	if b.length%4 == 0 {
		s := strings.ToUpper(hex.EncodeToString(b.data))
		return s[:b.length/4]
	}
	padded := b.paddedBytes()
	s := strings.ToUpper(hex.EncodeToString(padded))
	return s[:(b.length+3)/4] + "_"
}

func clearTail(buf []byte, length int) {
	if length%8 == 0 || len(buf) == 0 {
		return
	}
	buf[len(buf)-1] &= ^byte(0xff >> (uint(length) % 8))
}

// unpadBits strips the completion tag from a padded byte buffer.
func unpadBits(data []byte) (BitString, error) {
	if len(data) == 0 {
		return BitString{}, nil
	}
	last := data[len(data)-1]
	if last == 0 {
		return BitString{}, fmt.Errorf("%w: missing completion tag", ErrMalformedData)
	}
	trailing := 0
	for last&1 == 0 {
		last >>= 1
		trailing++
	}
	return NewBitString(data, len(data)*8-trailing-1)
}
