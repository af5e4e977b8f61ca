package light_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonlight/tonlight/crypto/ed25519"
	"github.com/tonlight/tonlight/internal/test/factory"
	"github.com/tonlight/tonlight/types"
)

// The seqnos of the mainnet blocks the scenarios are modelled on.
const (
	genesisSeqno   = 27678205
	firstKeySeqno  = 27683262
	nonKeySeqno    = 27683263
	secondKeySeqno = 27683981
)

// chain is a masterchain with three validator epochs: vals[0] is trusted at
// genesis, the first key block installs vals[1] and the second vals[2].
type chain struct {
	genesis *types.TrustedState
	vals    []*types.ValidatorSet
	privs   [][]ed25519.PrivKey

	files map[uint32][]byte
	sigs  map[uint32]*types.BlockSignatures
}

func makeChain(t *testing.T) *chain {
	t.Helper()

	ch := &chain{
		files: make(map[uint32][]byte),
		sigs:  make(map[uint32]*types.BlockSignatures),
	}
	for _, weights := range [][]uint64{{10, 20, 30, 40}, {25, 25, 25}, {7, 11, 13, 17, 19}} {
		vals, privs := factory.WeightedValidatorSet(weights...)
		ch.vals = append(ch.vals, vals)
		ch.privs = append(ch.privs, privs)
	}
	ch.genesis = &types.TrustedState{
		GlobalID:   factory.MainnetGlobalID,
		Seqno:      genesisSeqno,
		Validators: ch.vals[0],
	}

	ch.add(t, factory.BlockSpec{
		Seqno:             firstKeySeqno,
		PrevKeyBlockSeqno: genesisSeqno,
		KeyBlock:          true,
		NextValidators:    ch.vals[1],
	}, ch.privs[0])
	ch.add(t, factory.BlockSpec{
		Seqno:             nonKeySeqno,
		PrevKeyBlockSeqno: firstKeySeqno,
	}, ch.privs[1])
	ch.add(t, factory.BlockSpec{
		Seqno:             secondKeySeqno,
		PrevKeyBlockSeqno: firstKeySeqno,
		KeyBlock:          true,
		NextValidators:    ch.vals[2],
	}, ch.privs[1])

	return ch
}

// add builds the block described by spec on the main network and has privs
// sign it.
func (ch *chain) add(t *testing.T, spec factory.BlockSpec, privs []ed25519.PrivKey) {
	t.Helper()

	spec.GlobalID = factory.MainnetGlobalID
	spec.GenUtime = 1660000000 + spec.Seqno
	boc, err := factory.MakeBlockFile(spec)
	require.NoError(t, err)
	block, err := types.NewBlockAndFileHash(boc)
	require.NoError(t, err)

	ch.files[spec.Seqno] = boc
	ch.sigs[spec.Seqno] = factory.BlockSignatures(spec.Seqno, block, privs)
}

func (ch *chain) provable(t *testing.T, seqno uint32) *types.ProvableBlock {
	t.Helper()

	block, err := types.NewBlockAndFileHash(ch.files[seqno])
	require.NoError(t, err)
	sm, err := ch.sigs[seqno].SignatureMap()
	require.NoError(t, err)
	return &types.ProvableBlock{Block: block, Signatures: sm}
}

// signed builds the block described by spec on the main network, signed by
// privs.
func signed(t *testing.T, spec factory.BlockSpec, privs []ed25519.PrivKey) *types.ProvableBlock {
	t.Helper()

	if spec.GlobalID == 0 {
		spec.GlobalID = factory.MainnetGlobalID
	}
	block, err := factory.MakeBlockAndFileHash(spec)
	require.NoError(t, err)
	return &types.ProvableBlock{Block: block, Signatures: factory.SignBlock(block, privs)}
}
