package cell_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tonlight/tonlight/cell"
)

func TestSliceLoads(t *testing.T) {
	ref := mustCell(t, cell.NewBuilder().StoreUint(1, 1))
	c := mustCell(t, cell.NewBuilder().
		StoreBit(true).
		StoreUint(0x11ef55aa, 32).
		StoreInt(-239, 32).
		StoreVarUint(big.NewInt(1_000_000_000), 4).
		StoreMaybeRef(nil).
		StoreMaybeRef(ref).
		StoreBytes([]byte{0xca, 0xfe}))

	s, err := c.BeginParse()
	require.NoError(t, err)

	bit, err := s.LoadBit()
	require.NoError(t, err)
	assert.True(t, bit)

	tag, err := s.PreloadUint(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x11ef55aa), tag)
	tag, err = s.LoadUint(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x11ef55aa), tag)

	v, err := s.LoadInt(32)
	require.NoError(t, err)
	assert.Equal(t, int64(-239), v)

	grams, err := s.LoadVarUint(4)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), grams.Int64())

	none, err := s.LoadMaybeRef()
	require.NoError(t, err)
	assert.Nil(t, none)
	some, err := s.LoadMaybeRef()
	require.NoError(t, err)
	assert.True(t, ref.Equal(some))

	b, err := s.LoadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, b)
	require.NoError(t, s.EnsureEmpty())

	_, err = s.LoadBit()
	assert.True(t, errors.Is(err, cell.ErrMalformedData))
	_, err = s.LoadRef()
	assert.True(t, errors.Is(err, cell.ErrMalformedData))
}

func TestSliceCopyIsIndependent(t *testing.T) {
	c := mustCell(t, cell.NewBuilder().StoreUint(0xabcd, 16))
	s := c.MustBeginParse()
	cp := s.Copy()

	_, err := s.LoadUint(8)
	require.NoError(t, err)
	assert.Equal(t, 8, s.BitsLeft())
	assert.Equal(t, 16, cp.BitsLeft())

	rest, err := s.ToCell()
	require.NoError(t, err)
	assert.True(t, mustCell(t, cell.NewBuilder().StoreUint(0xcd, 8)).Equal(rest))
}

func TestBuilderRejectsOversizedValues(t *testing.T) {
	assert.True(t, errors.Is(cell.NewBuilder().StoreUint(4, 2).Err(), cell.ErrCellOverflow))
	assert.True(t, errors.Is(cell.NewBuilder().StoreInt(-5, 3).Err(), cell.ErrCellOverflow))
	assert.True(t, errors.Is(cell.NewBuilder().StoreRef(nil).Err(), cell.ErrMalformedData))

	big16 := new(big.Int).Lsh(big.NewInt(1), 120)
	assert.True(t, errors.Is(cell.NewBuilder().StoreVarUint(big16, 4).Err(), cell.ErrCellOverflow))
}

func TestIntegersRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(t, "n").(int)
		u := rapid.Uint64().Draw(t, "u").(uint64)
		if n < 64 {
			u &= 1<<uint(n) - 1
		}
		i := rapid.Int64().Draw(t, "i").(int64)
		if n < 64 {
			i >>= uint(64 - n)
		}

		c, err := cell.NewBuilder().StoreUint(u, n).StoreInt(i, n).EndCell()
		require.NoError(t, err)
		s := c.MustBeginParse()

		gotU, err := s.LoadUint(n)
		require.NoError(t, err)
		gotI, err := s.LoadInt(n)
		require.NoError(t, err)
		assert.Equal(t, u, gotU)
		assert.Equal(t, i, gotI)
	})
}
