package cell_test

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonlight/tonlight/cell"
)

func mustCell(t *testing.T, b *cell.Builder) *cell.Cell {
	t.Helper()
	c, err := b.EndCell()
	require.NoError(t, err)
	return c
}

func prune(t *testing.T, c *cell.Cell) *cell.Cell {
	t.Helper()
	p, err := cell.NewBuilder().
		StoreUint(uint64(cell.PrunedBranch), 8).
		StoreUint(1, 8).
		StoreBytes(c.Hash(0)).
		StoreUint(uint64(c.Depth(0)), 16).
		EndExoticCell()
	require.NoError(t, err)
	return p
}

func TestEmptyCellHash(t *testing.T) {
	c := mustCell(t, cell.NewBuilder())
	assert.Equal(t,
		"96a296d224f285c67bee93c30f8a309157f0daa35dc5b87e410b78630a09cfc7",
		hex.EncodeToString(c.Hash(0)))
	assert.Equal(t, uint16(0), c.Depth(0))
	assert.Equal(t, 0, c.Level())
	assert.Equal(t, c.Hash(0), c.RepresentationHash())
}

func TestCellHashDependsOnContent(t *testing.T) {
	a := mustCell(t, cell.NewBuilder().StoreUint(5, 3))
	b := mustCell(t, cell.NewBuilder().StoreUint(5, 4))
	c := mustCell(t, cell.NewBuilder().StoreUint(5, 3).StoreRef(a))

	assert.NotEqual(t, a.Hash(0), b.Hash(0))
	assert.NotEqual(t, a.Hash(0), c.Hash(0))
	assert.Equal(t, uint16(1), c.Depth(0))
	assert.True(t, a.Equal(mustCell(t, cell.NewBuilder().StoreUint(5, 3))))
}

func TestPrunedBranchKeepsHash(t *testing.T) {
	leaf := mustCell(t, cell.NewBuilder().StoreUint(0xdead, 16))
	inner := mustCell(t, cell.NewBuilder().StoreUint(1, 1).StoreRef(leaf))
	root := mustCell(t, cell.NewBuilder().StoreUint(7, 32).StoreRef(inner))

	p := prune(t, inner)
	assert.Equal(t, cell.PrunedBranch, p.Type())
	assert.Equal(t, 1, p.Level())
	assert.Equal(t, inner.Hash(0), p.Hash(0))
	assert.Equal(t, inner.Depth(0), p.Depth(0))

	prunedRoot := mustCell(t, cell.NewBuilder().StoreUint(7, 32).StoreRef(p))
	assert.Equal(t, root.Hash(0), prunedRoot.Hash(0))
	assert.Equal(t, root.Depth(0), prunedRoot.Depth(0))
	assert.Equal(t, 1, prunedRoot.Level())
	assert.NotEqual(t, root.Hash(1), prunedRoot.Hash(1))

	_, err := p.Ref(0)
	assert.True(t, errors.Is(err, cell.ErrMalformedData))
	var exotic cell.ErrExoticCell
	require.True(t, errors.As(err, &exotic))
	assert.Equal(t, cell.PrunedBranch, exotic.Type)

	_, err = p.BeginParse()
	assert.Error(t, err)
}

func TestMerkleProof(t *testing.T) {
	leaf := mustCell(t, cell.NewBuilder().StoreUint(42, 64))
	root := mustCell(t, cell.NewBuilder().StoreRef(leaf).StoreRef(leaf))
	virtual := mustCell(t, cell.NewBuilder().StoreRef(prune(t, leaf)).StoreRef(leaf))
	require.Equal(t, root.Hash(0), virtual.Hash(0))

	proof, err := cell.NewBuilder().
		StoreUint(uint64(cell.MerkleProof), 8).
		StoreBytes(virtual.Hash(0)).
		StoreUint(uint64(virtual.Depth(0)), 16).
		StoreRef(virtual).
		EndExoticCell()
	require.NoError(t, err)
	assert.Equal(t, cell.MerkleProof, proof.Type())
	assert.Equal(t, 0, proof.Level())
	assert.Equal(t, virtual.Depth(0)+1, proof.Depth(0))

	got, err := proof.Ref(0)
	require.NoError(t, err)
	assert.Equal(t, root.Hash(0), got.Hash(0))

	_, err = cell.NewBuilder().
		StoreUint(uint64(cell.MerkleProof), 8).
		StoreBytes(leaf.Hash(0)).
		StoreUint(uint64(virtual.Depth(0)), 16).
		StoreRef(virtual).
		EndExoticCell()
	assert.True(t, errors.Is(err, cell.ErrMalformedData))
}

func TestMerkleUpdate(t *testing.T) {
	from := mustCell(t, cell.NewBuilder().StoreUint(1, 8))
	to := mustCell(t, cell.NewBuilder().StoreUint(2, 8).StoreRef(from))

	upd, err := cell.NewBuilder().
		StoreUint(uint64(cell.MerkleUpdate), 8).
		StoreBytes(from.Hash(0)).
		StoreBytes(to.Hash(0)).
		StoreUint(uint64(from.Depth(0)), 16).
		StoreUint(uint64(to.Depth(0)), 16).
		StoreRef(from).
		StoreRef(to).
		EndExoticCell()
	require.NoError(t, err)
	assert.Equal(t, cell.MerkleUpdate, upd.Type())
	assert.Equal(t, 2, upd.RefsCount())
}

func TestLibraryCell(t *testing.T) {
	lib, err := cell.NewBuilder().
		StoreUint(uint64(cell.Library), 8).
		StoreBytes(make([]byte, 32)).
		EndExoticCell()
	require.NoError(t, err)
	assert.Equal(t, cell.Library, lib.Type())
	assert.Equal(t, 0, lib.Level())

	_, err = cell.NewBuilder().StoreUint(uint64(cell.Library), 8).EndExoticCell()
	assert.True(t, errors.Is(err, cell.ErrMalformedData))
}

func TestInvalidExoticCells(t *testing.T) {
	testCases := []struct {
		name string
		b    *cell.Builder
	}{
		{"no tag", cell.NewBuilder().StoreUint(1, 4)},
		{"unknown type", cell.NewBuilder().StoreUint(9, 8)},
		{"pruned zero mask", cell.NewBuilder().StoreUint(1, 8).StoreUint(0, 8).StoreBytes(make([]byte, 34))},
		{"pruned short", cell.NewBuilder().StoreUint(1, 8).StoreUint(1, 8).StoreBytes(make([]byte, 10))},
		{"proof without child", cell.NewBuilder().StoreUint(3, 8).StoreBytes(make([]byte, 34))},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.b.EndExoticCell()
			assert.True(t, errors.Is(err, cell.ErrMalformedData), "got %v", err)
		})
	}
}

func TestCellLimits(t *testing.T) {
	leaf := mustCell(t, cell.NewBuilder())

	b := cell.NewBuilder()
	for i := 0; i < cell.MaxRefs+1; i++ {
		b.StoreRef(leaf)
	}
	_, err := b.EndCell()
	assert.True(t, errors.Is(err, cell.ErrCellOverflow))

	b = cell.NewBuilder().StoreBytes(make([]byte, 127)).StoreUint(0, 7)
	require.NoError(t, b.Err())
	assert.Equal(t, cell.MaxBits, b.BitsUsed())
	b.StoreBit(true)
	assert.True(t, errors.Is(b.Err(), cell.ErrCellOverflow))
}

func TestBitStringString(t *testing.T) {
	bs, err := cell.NewBitString([]byte{0xa5, 0x80}, 9)
	require.NoError(t, err)
	assert.Equal(t, "A5C_", bs.String())

	bs, err = cell.NewBitString([]byte{0xab}, 8)
	require.NoError(t, err)
	assert.Equal(t, "AB", bs.String())
}
