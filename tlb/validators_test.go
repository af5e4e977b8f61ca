package tlb_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/tlb"
)

func testValidatorSet() *tlb.ValidatorSet {
	adnl := [32]byte{0xad}
	return &tlb.ValidatorSet{
		UtimeSince:  1689600000,
		UtimeUntil:  1689665536,
		Total:       3,
		Main:        3,
		TotalWeight: 60,
		List: []tlb.ValidatorDescr{
			{PublicKey: [32]byte{1}, Weight: 10},
			{PublicKey: [32]byte{2}, Weight: 20, AdnlAddr: &adnl},
			{PublicKey: [32]byte{3}, Weight: 30},
		},
	}
}

func TestValidatorSetRoundTrip(t *testing.T) {
	vs := testValidatorSet()
	c, err := vs.ToCell()
	require.NoError(t, err)

	got, err := tlb.LoadValidatorSet(c.MustBeginParse())
	require.NoError(t, err)
	if diff := cmp.Diff(vs, got); diff != "" {
		t.Errorf("validator set mismatch (-want +got):\n%s", diff)
	}
}

func TestValidatorSetVariants(t *testing.T) {
	testCases := []struct {
		name string
		cell func(t *testing.T) *cell.Cell
	}{
		{"plain validators#11", func(t *testing.T) *cell.Cell {
			c, err := cell.NewBuilder().
				StoreUint(tlb.ValidatorsTag, 8).
				StoreUint(0, 32).StoreUint(0, 32).
				StoreUint(1, 16).StoreUint(1, 16).
				StoreBit(false).
				EndCell()
			require.NoError(t, err)
			return c
		}},
		{"unknown tag", func(t *testing.T) *cell.Cell {
			c, err := cell.NewBuilder().StoreUint(0x13, 8).EndCell()
			require.NoError(t, err)
			return c
		}},
		{"main above total", func(t *testing.T) *cell.Cell {
			vs := testValidatorSet()
			vs.Main = 4
			c, err := vs.ToCell()
			require.NoError(t, err)
			return c
		}},
		{"zero main", func(t *testing.T) *cell.Cell {
			vs := testValidatorSet()
			vs.Main = 0
			c, err := vs.ToCell()
			require.NoError(t, err)
			return c
		}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := tlb.LoadValidatorSet(tc.cell(t).MustBeginParse())
			var de tlb.ErrDecode
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, "ValidatorSet", de.Type)
		})
	}
}

func TestValidatorDescrRejectsOtherKeyTypes(t *testing.T) {
	bad, err := cell.NewBuilder().
		StoreUint(0x53, 8).
		StoreUint(0xdeadbeef, 32).
		StoreBytes(make([]byte, 32)).
		StoreUint(1, 64).
		EndCell()
	require.NoError(t, err)
	key, err := cell.NewBuilder().StoreUint(0, 16).EndCell()
	require.NoError(t, err)
	list, err := tlb.BuildHashmap(16, []tlb.HashmapEntry{{
		Key:   key.Bits(),
		Store: func(b *cell.Builder) error { return b.StoreSlice(bad.MustBeginParse()).Err() },
	}}, nil)
	require.NoError(t, err)

	c, err := cell.NewBuilder().
		StoreUint(tlb.ValidatorsExtTag, 8).
		StoreUint(0, 32).StoreUint(0, 32).
		StoreUint(1, 16).StoreUint(1, 16).
		StoreUint(1, 64).
		StoreMaybeRef(list).
		EndCell()
	require.NoError(t, err)

	_, err = tlb.LoadValidatorSet(c.MustBeginParse())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SigPubKey")
}

func TestConfigParamLookup(t *testing.T) {
	vs := testValidatorSet()
	vsCell, err := vs.ToCell()
	require.NoError(t, err)
	other, err := cell.NewBuilder().StoreUint(7, 8).EndCell()
	require.NoError(t, err)

	params, err := tlb.BuildConfigParams([32]byte{0x55}, map[uint32]*cell.Cell{
		tlb.ConfigValidatorSet: vsCell,
		36:                     other,
	})
	require.NoError(t, err)

	got, err := params.Param(tlb.ConfigValidatorSet)
	require.NoError(t, err)
	assert.True(t, vsCell.Equal(got))

	missing, err := params.Param(32)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Stored inside a key block extra and read back.
	extra := &tlb.McBlockExtra{KeyBlock: true, Config: params}
	c, err := extra.ToCell()
	require.NoError(t, err)
	decoded, err := tlb.LoadMcBlockExtra(c.MustBeginParse())
	require.NoError(t, err)
	require.True(t, decoded.KeyBlock)
	require.NotNil(t, decoded.Config)
	assert.Equal(t, params.ConfigAddr, decoded.Config.ConfigAddr)

	got, err = decoded.Config.Param(tlb.ConfigValidatorSet)
	require.NoError(t, err)
	loaded, err := tlb.LoadValidatorSet(got.MustBeginParse())
	require.NoError(t, err)
	assert.Len(t, loaded.List, 3)
}

func TestMcBlockExtraKeyBlockNeedsConfig(t *testing.T) {
	_, err := (&tlb.McBlockExtra{KeyBlock: true}).ToCell()
	assert.Error(t, err)

	c, err := (&tlb.McBlockExtra{}).ToCell()
	require.NoError(t, err)
	decoded, err := tlb.LoadMcBlockExtra(c.MustBeginParse())
	require.NoError(t, err)
	assert.False(t, decoded.KeyBlock)
	assert.Nil(t, decoded.Config)
}
