package db

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tonlight/tonlight/internal/test/factory"
	"github.com/tonlight/tonlight/light/store"
	"github.com/tonlight/tonlight/types"
)

func trustedState(t *testing.T, seqno uint32) *types.TrustedState {
	t.Helper()
	vals, _ := factory.ValidatorSet(3, 10)
	return &types.TrustedState{GlobalID: factory.MainnetGlobalID, Seqno: seqno, Validators: vals}
}

func TestLastTrustedState(t *testing.T) {
	dbStore := New(dbm.NewMemDB())

	// Empty store
	_, err := dbStore.LastTrustedState()
	assert.Equal(t, store.ErrTrustedStateNotFound, err)

	for _, seqno := range []uint32{27683262, 27678205, 4294967295, 0} {
		require.NoError(t, dbStore.SaveTrustedState(trustedState(t, seqno)))
	}
	last, err := dbStore.LastTrustedState()
	require.NoError(t, err)
	assert.EqualValues(t, 4294967295, last.Seqno)
	assert.EqualValues(t, 4, dbStore.Size())
}

func TestSaveTrustedState(t *testing.T) {
	dbStore := New(dbm.NewMemDB())

	// Empty store
	ts, err := dbStore.TrustedState(1)
	assert.Equal(t, store.ErrTrustedStateNotFound, err)
	assert.Nil(t, ts)

	// 1 key
	want := trustedState(t, 1)
	require.NoError(t, dbStore.SaveTrustedState(want))
	ts, err = dbStore.TrustedState(1)
	require.NoError(t, err)
	assert.Equal(t, want.GlobalID, ts.GlobalID)
	assert.True(t, want.Validators.Equals(ts.Validators))

	// Saving the same seqno again does not grow the store.
	require.NoError(t, dbStore.SaveTrustedState(want))
	assert.EqualValues(t, 1, dbStore.Size())

	// Empty store
	require.NoError(t, dbStore.DeleteTrustedState(1))
	ts, err = dbStore.TrustedState(1)
	assert.Equal(t, store.ErrTrustedStateNotFound, err)
	assert.Nil(t, ts)
	assert.EqualValues(t, 0, dbStore.Size())
	assert.Equal(t, store.ErrTrustedStateNotFound, dbStore.DeleteTrustedState(1))

	assert.Error(t, dbStore.SaveTrustedState(&types.TrustedState{Seqno: 2}))
}

func TestPrune(t *testing.T) {
	dbStore := New(dbm.NewMemDB())

	// Empty store
	assert.EqualValues(t, 0, dbStore.Size())
	require.NoError(t, dbStore.Prune(0))

	// One key
	require.NoError(t, dbStore.SaveTrustedState(trustedState(t, 2)))
	assert.EqualValues(t, 1, dbStore.Size())
	require.NoError(t, dbStore.Prune(1))
	assert.EqualValues(t, 1, dbStore.Size())
	require.NoError(t, dbStore.Prune(0))
	assert.EqualValues(t, 0, dbStore.Size())

	// Multiple keys
	for i := 1; i <= 10; i++ {
		require.NoError(t, dbStore.SaveTrustedState(trustedState(t, uint32(i*100))))
	}
	require.NoError(t, dbStore.Prune(3))
	assert.EqualValues(t, 3, dbStore.Size())
	_, err := dbStore.TrustedState(700)
	assert.Equal(t, store.ErrTrustedStateNotFound, err)
	ts, err := dbStore.TrustedState(800)
	require.NoError(t, err)
	assert.EqualValues(t, 800, ts.Seqno)
}

func TestSizePersists(t *testing.T) {
	db := dbm.NewMemDB()
	dbStore := New(db)
	for i := uint32(1); i <= 3; i++ {
		require.NoError(t, dbStore.SaveTrustedState(trustedState(t, i)))
	}
	assert.EqualValues(t, 3, New(db).Size())
}

func Test_Concurrency(t *testing.T) {
	dbStore := New(dbm.NewMemDB())
	states := make([]*types.TrustedState, 50)
	for i := range states {
		states[i] = trustedState(t, uint32(i+1))
	}

	var wg sync.WaitGroup
	for i := range states {
		wg.Add(1)
		go func(ts *types.TrustedState) {
			defer wg.Done()

			if err := dbStore.SaveTrustedState(ts); err != nil {
				t.Error(err)
			}
			// A concurrent prune may already have removed it.
			if _, err := dbStore.TrustedState(ts.Seqno); err != nil && err != store.ErrTrustedStateNotFound {
				t.Error(err)
			}
			if _, err := dbStore.LastTrustedState(); err != nil {
				t.Error(err)
			}
			if err := dbStore.Prune(2); err != nil {
				t.Error(err)
			}
			_ = dbStore.Size()
		}(states[i])
	}
	wg.Wait()
}
