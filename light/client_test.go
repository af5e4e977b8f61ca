package light_test

import (
	"errors"
	"testing"

	"github.com/go-kit/kit/metrics/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tonlight/tonlight/crypto/ed25519"
	"github.com/tonlight/tonlight/internal/test/factory"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/light"
	"github.com/tonlight/tonlight/light/store"
	dbs "github.com/tonlight/tonlight/light/store/db"
	"github.com/tonlight/tonlight/types"
)

func TestClientFollowsKeyBlocks(t *testing.T) {
	ch := makeChain(t)
	c, err := light.NewClient(ch.genesis, light.Logger(log.TestingLogger()))
	require.NoError(t, err)

	require.NoError(t, c.NewKeyBlock(ch.provable(t, firstKeySeqno)))
	state := c.State()
	assert.EqualValues(t, firstKeySeqno, state.Seqno)
	assert.EqualValues(t, factory.MainnetGlobalID, state.GlobalID)
	assert.True(t, ch.vals[1].Equals(state.Validators))

	require.NoError(t, c.NewKeyBlock(ch.provable(t, secondKeySeqno)))
	state = c.State()
	assert.EqualValues(t, secondKeySeqno, state.Seqno)
	assert.True(t, ch.vals[2].Equals(state.Validators))
}

func TestClientRejectsKeyBlock(t *testing.T) {
	ch := makeChain(t)
	privs := ch.privs[0]
	keyBlock := factory.BlockSpec{
		Seqno:             firstKeySeqno,
		PrevKeyBlockSeqno: genesisSeqno,
		KeyBlock:          true,
		NextValidators:    ch.vals[1],
	}
	with := func(f func(*factory.BlockSpec)) factory.BlockSpec {
		spec := keyBlock
		f(&spec)
		return spec
	}

	testCases := []struct {
		name  string
		block *types.ProvableBlock
		check func(t *testing.T, err error)
	}{
		{
			"wrong network",
			signed(t, with(func(s *factory.BlockSpec) { s.GlobalID = -3 }), privs),
			func(t *testing.T, err error) {
				assert.Equal(t, light.ErrWrongNetwork{Expected: factory.MainnetGlobalID, Got: -3}, err)
			},
		},
		{
			"shard block",
			signed(t, with(func(s *factory.BlockSpec) { s.NotMaster = true }), privs),
			func(t *testing.T, err error) {
				assert.Equal(t, light.ErrNotMasterchain{Seqno: firstKeySeqno}, err)
			},
		},
		{
			"not a key block",
			signed(t, with(func(s *factory.BlockSpec) { s.KeyBlock = false }), privs),
			func(t *testing.T, err error) {
				assert.Equal(t, light.ErrNotKeyBlock{Seqno: firstKeySeqno}, err)
			},
		},
		{
			"skips a key block",
			signed(t, with(func(s *factory.BlockSpec) { s.PrevKeyBlockSeqno = genesisSeqno - 1 }), privs),
			func(t *testing.T, err error) {
				assert.Equal(t, light.ErrSeqnoMismatch{Expected: genesisSeqno, Got: genesisSeqno - 1}, err)
			},
		},
		{
			"does not move forward",
			signed(t, with(func(s *factory.BlockSpec) { s.Seqno = genesisSeqno }), privs),
			func(t *testing.T, err error) {
				assert.Equal(t, light.ErrSeqnoMismatch{Expected: genesisSeqno, Got: genesisSeqno}, err)
			},
		},
		{
			"signed by the next validators",
			signed(t, keyBlock, ch.privs[1]),
			func(t *testing.T, err error) {
				assert.Equal(t, types.ErrUnknownSigner{NodeID: ch.privs[1][0].PubKey().NodeIDShort()}, err)
			},
		},
		{
			"under quorum",
			signed(t, keyBlock, privs[1:3]),
			func(t *testing.T, err error) {
				// 20 + 30 of 100 is short of 66.
				assert.Equal(t, types.ErrQuorumNotMet{Got: 50, Needed: 66}, err)
			},
		},
		{
			"no validator set",
			signed(t, with(func(s *factory.BlockSpec) { s.NextValidators = nil }), privs),
			func(t *testing.T, err error) {
				var missing types.ErrConfigMissing
				require.True(t, errors.As(err, &missing), err)
				assert.EqualValues(t, 34, missing.Index)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c, err := light.NewClient(ch.genesis)
			require.NoError(t, err)

			err = c.NewKeyBlock(tc.block)
			require.Error(t, err)
			tc.check(t, err)

			state := c.State()
			assert.EqualValues(t, genesisSeqno, state.Seqno)
			assert.True(t, ch.vals[0].Equals(state.Validators))
		})
	}
}

func TestClientRejectsReplayedKeyBlock(t *testing.T) {
	ch := makeChain(t)
	c, err := light.NewClient(ch.genesis)
	require.NoError(t, err)

	first := ch.provable(t, firstKeySeqno)
	require.NoError(t, c.NewKeyBlock(first))
	err = c.NewKeyBlock(first)
	assert.Equal(t, light.ErrSeqnoMismatch{Expected: firstKeySeqno, Got: genesisSeqno}, err)
	assert.EqualValues(t, firstKeySeqno, c.State().Seqno)
}

func TestClientTallyModes(t *testing.T) {
	ch := makeChain(t)
	// Only the lightest validator signs.
	pb := signed(t, factory.BlockSpec{
		Seqno:             firstKeySeqno,
		PrevKeyBlockSeqno: genesisSeqno,
		KeyBlock:          true,
		NextValidators:    ch.vals[1],
	}, ch.privs[0][:1])

	c, err := light.NewClient(ch.genesis)
	require.NoError(t, err)
	assert.Equal(t, types.ErrQuorumNotMet{Got: 10, Needed: 66}, c.NewKeyBlock(pb))

	c, err = light.NewClient(ch.genesis, light.TallyMode(types.TallyTotalWeight))
	require.NoError(t, err)
	require.NoError(t, c.NewKeyBlock(pb))
	assert.EqualValues(t, firstKeySeqno, c.State().Seqno)
}

func TestClientVerifyTotalWeight(t *testing.T) {
	ch := makeChain(t)
	a, _ := factory.Validator(50)
	b, _ := factory.Validator(50)
	overweight, err := types.NewValidatorSetWithTotal([]*types.Validator{a, b}, 60)
	require.NoError(t, err)
	pb := signed(t, factory.BlockSpec{
		Seqno:             firstKeySeqno,
		PrevKeyBlockSeqno: genesisSeqno,
		KeyBlock:          true,
		NextValidators:    overweight,
	}, ch.privs[0])

	c, err := light.NewClient(ch.genesis)
	require.NoError(t, err)
	err = c.NewKeyBlock(pb)
	var invalid types.ErrInvalidTotalWeight
	require.True(t, errors.As(err, &invalid), err)
	assert.Equal(t, types.ErrInvalidTotalWeight{Sum: 100, Total: 60}, invalid)

	c, err = light.NewClient(ch.genesis, light.VerifyTotalWeight(false))
	require.NoError(t, err)
	require.NoError(t, c.NewKeyBlock(pb))
	assert.EqualValues(t, 60, c.State().Validators.TotalWeight())
}

func TestClientCheckBlock(t *testing.T) {
	ch := makeChain(t)
	c, err := light.NewClient(ch.genesis)
	require.NoError(t, err)
	require.NoError(t, c.NewKeyBlock(ch.provable(t, firstKeySeqno)))

	t.Run("non-key block of the current epoch", func(t *testing.T) {
		require.NoError(t, c.CheckBlock(ch.provable(t, nonKeySeqno)))
		assert.EqualValues(t, firstKeySeqno, c.State().Seqno)
	})

	t.Run("key block of the current epoch", func(t *testing.T) {
		require.NoError(t, c.CheckBlock(ch.provable(t, secondKeySeqno)))
		assert.EqualValues(t, firstKeySeqno, c.State().Seqno)
		assert.True(t, ch.vals[1].Equals(c.State().Validators))
	})

	t.Run("block of the previous epoch", func(t *testing.T) {
		err := c.CheckBlock(ch.provable(t, firstKeySeqno))
		assert.Equal(t, light.ErrSeqnoMismatch{Expected: firstKeySeqno, Got: genesisSeqno}, err)
	})

	t.Run("block of a later epoch", func(t *testing.T) {
		pb := signed(t, factory.BlockSpec{
			Seqno:             secondKeySeqno + 1,
			PrevKeyBlockSeqno: secondKeySeqno,
		}, ch.privs[2])
		err := c.CheckBlock(pb)
		assert.Equal(t, light.ErrSeqnoMismatch{Expected: firstKeySeqno, Got: secondKeySeqno}, err)
	})

	t.Run("repeated checks agree", func(t *testing.T) {
		for _, pb := range []*types.ProvableBlock{
			ch.provable(t, nonKeySeqno),
			ch.provable(t, firstKeySeqno),
		} {
			before := c.State()
			first := c.CheckBlock(pb)
			second := c.CheckBlock(pb)
			assert.Equal(t, first, second)
			assert.Equal(t, before, c.State())
		}
	})
}

func TestClientCheckBlockSignedByNextEpoch(t *testing.T) {
	// The next set keeps one trusted validator and brings in new ones. A
	// block carrying its signatures does not prove anything to a client
	// that still trusts the old set.
	current, privs := factory.ValidatorSet(4, 10)
	b, bPriv := factory.Validator(10)
	c2, cPriv := factory.Validator(10)
	_, err := types.NewValidatorSetWithTotal([]*types.Validator{current.Validators[0], b, c2}, 30)
	require.NoError(t, err)
	next := []ed25519.PrivKey{privs[0], bPriv, cPriv}

	state := &types.TrustedState{GlobalID: factory.MainnetGlobalID, Seqno: genesisSeqno, Validators: current}
	client, err := light.NewClient(state)
	require.NoError(t, err)
	spec := factory.BlockSpec{Seqno: genesisSeqno + 1, PrevKeyBlockSeqno: genesisSeqno}

	err = client.CheckBlock(signed(t, spec, next))
	assert.Equal(t, types.ErrUnknownSigner{NodeID: bPriv.PubKey().NodeIDShort()}, err)

	err = client.CheckBlock(signed(t, spec, next[:1]))
	assert.Equal(t, types.ErrQuorumNotMet{Got: 10, Needed: 26}, err)
}

func TestClientPersistsStates(t *testing.T) {
	ch := makeChain(t)
	trustedStore := dbs.New(dbm.NewMemDB())

	c, err := light.NewClient(ch.genesis, light.TrustedStore(trustedStore))
	require.NoError(t, err)
	assert.EqualValues(t, 1, trustedStore.Size())

	require.NoError(t, c.NewKeyBlock(ch.provable(t, firstKeySeqno)))
	assert.EqualValues(t, 2, trustedStore.Size())
	last, err := trustedStore.LastTrustedState()
	require.NoError(t, err)
	assert.EqualValues(t, firstKeySeqno, last.Seqno)

	resumed, err := light.NewClientFromTrustedStore(trustedStore)
	require.NoError(t, err)
	assert.EqualValues(t, firstKeySeqno, resumed.State().Seqno)
	assert.True(t, ch.vals[1].Equals(resumed.State().Validators))
	require.NoError(t, resumed.NewKeyBlock(ch.provable(t, secondKeySeqno)))
	assert.EqualValues(t, 3, trustedStore.Size())

	_, err = light.NewClientFromTrustedStore(dbs.New(dbm.NewMemDB()))
	assert.ErrorIs(t, err, store.ErrTrustedStateNotFound)
}

func TestClientPrunesStore(t *testing.T) {
	ch := makeChain(t)
	trustedStore := dbs.New(dbm.NewMemDB())
	c, err := light.NewClient(ch.genesis, light.TrustedStore(trustedStore), light.PruningSize(1))
	require.NoError(t, err)

	require.NoError(t, c.NewKeyBlock(ch.provable(t, firstKeySeqno)))
	assert.EqualValues(t, 1, trustedStore.Size())
	_, err = trustedStore.TrustedState(genesisSeqno)
	assert.ErrorIs(t, err, store.ErrTrustedStateNotFound)
}

type failingStore struct {
	store.Store
	failAt uint32
}

func (s failingStore) SaveTrustedState(ts *types.TrustedState) error {
	if ts.Seqno == s.failAt {
		return errors.New("disk full")
	}
	return s.Store.SaveTrustedState(ts)
}

func TestClientKeepsStateWhenStoreFails(t *testing.T) {
	ch := makeChain(t)
	trustedStore := failingStore{Store: dbs.New(dbm.NewMemDB()), failAt: firstKeySeqno}
	c, err := light.NewClient(ch.genesis, light.TrustedStore(trustedStore))
	require.NoError(t, err)

	err = c.NewKeyBlock(ch.provable(t, firstKeySeqno))
	assert.ErrorContains(t, err, "disk full")
	assert.EqualValues(t, genesisSeqno, c.State().Seqno)
}

func TestClientStateIsACopy(t *testing.T) {
	ch := makeChain(t)
	c, err := light.NewClient(ch.genesis)
	require.NoError(t, err)

	state := c.State()
	state.Seqno = 1
	state.Validators.Validators[0].Weight = 1000
	assert.EqualValues(t, genesisSeqno, c.State().Seqno)
	assert.EqualValues(t, 10, c.State().Validators.Validators[0].Weight)

	ch.genesis.Seqno = 2
	assert.EqualValues(t, genesisSeqno, c.State().Seqno)
}

func TestNewClientInvalidState(t *testing.T) {
	_, err := light.NewClient(&types.TrustedState{Seqno: 1})
	assert.Error(t, err)
	_, err = light.NewClient(nil)
	assert.Error(t, err)
}

func TestClientMetrics(t *testing.T) {
	ch := makeChain(t)
	m := light.NopMetrics()
	keyBlocks := generic.NewCounter("key_blocks")
	checked := generic.NewCounter("checked_blocks")
	seqno := generic.NewGauge("trusted_seqno")
	m.KeyBlocks, m.CheckedBlocks, m.TrustedSeqno = keyBlocks, checked, seqno

	c, err := light.NewClient(ch.genesis, light.WithMetrics(m))
	require.NoError(t, err)
	assert.EqualValues(t, genesisSeqno, seqno.Value())

	require.NoError(t, c.NewKeyBlock(ch.provable(t, firstKeySeqno)))
	require.NoError(t, c.CheckBlock(ch.provable(t, nonKeySeqno)))
	require.Error(t, c.CheckBlock(ch.provable(t, firstKeySeqno)))

	assert.EqualValues(t, 1, keyBlocks.Value())
	assert.EqualValues(t, 1, checked.Value())
	assert.EqualValues(t, firstKeySeqno, seqno.Value())
}
