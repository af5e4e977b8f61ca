package types_test

import (
	"crypto/sha256"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/internal/test/factory"
	"github.com/tonlight/tonlight/merkle"
	"github.com/tonlight/tonlight/types"
)

func TestBlockAndFileHashFromFile(t *testing.T) {
	boc, err := factory.MakeBlockFile(factory.BlockSpec{GlobalID: factory.MainnetGlobalID, Seqno: 77})
	require.NoError(t, err)
	block, err := types.NewBlockAndFileHash(boc)
	require.NoError(t, err)
	require.NoError(t, block.ValidateBasic())

	sum := sha256.Sum256(boc)
	assert.Equal(t, sum[:], block.FileHash)
	rootHash, err := block.RootHash()
	require.NoError(t, err)
	assert.Equal(t, block.Root.Hash(0), rootHash)
	assert.True(t, block.Matches(rootHash, sum[:]))
	assert.False(t, block.Matches(sum[:], rootHash))

	decoded, err := block.Block()
	require.NoError(t, err)
	assert.EqualValues(t, 77, decoded.Info.SeqNo)
	assert.EqualValues(t, factory.MainnetGlobalID, decoded.GlobalID)
}

func TestBlockAndFileHashFromHeaderProof(t *testing.T) {
	root, err := factory.MakeBlock(factory.BlockSpec{Seqno: 5, PrevKeyBlockSeqno: 3})
	require.NoError(t, err)
	proof, err := merkle.HeaderProof(root)
	require.NoError(t, err)

	fileHash := make([]byte, 32)
	block := &types.BlockAndFileHash{Root: proof, FileHash: fileHash}
	rootHash, err := block.RootHash()
	require.NoError(t, err)
	assert.Equal(t, root.Hash(0), rootHash)

	decoded, err := block.Block()
	require.NoError(t, err)
	assert.EqualValues(t, 3, decoded.Info.PrevKeyBlockSeqno)
	assert.Nil(t, decoded.Extra)
}

func TestBlockAndFileHashMainnetHeader(t *testing.T) {
	data, err := os.ReadFile("../tlb/testdata/mainnet-31220993.header")
	require.NoError(t, err)
	block, err := types.NewBlockAndFileHash(data)
	require.NoError(t, err)
	assert.Equal(t, cell.MerkleProof, block.Root.Type())

	decoded, err := block.Block()
	require.NoError(t, err)
	assert.EqualValues(t, 31220993, decoded.Info.SeqNo)
}

func TestBlockAndFileHashRejectsPrunedRoot(t *testing.T) {
	root, err := factory.MakeBlock(factory.BlockSpec{Seqno: 5})
	require.NoError(t, err)
	pruned, err := merkle.PrunedBranch(root)
	require.NoError(t, err)

	block := &types.BlockAndFileHash{Root: pruned, FileHash: make([]byte, 32)}
	_, err = block.RootHash()
	assert.Error(t, err)
}

func TestProvableBlockValidateBasic(t *testing.T) {
	_, privs := factory.ValidatorSet(2, 1)
	block, sigs := signedBlock(t, privs)

	assert.NoError(t, (&types.ProvableBlock{Block: block, Signatures: sigs}).ValidateBasic())
	assert.Error(t, (&types.ProvableBlock{Block: block}).ValidateBasic())
	assert.Error(t, (&types.ProvableBlock{
		Block:      &types.BlockAndFileHash{Root: block.Root, FileHash: []byte{1}},
		Signatures: sigs,
	}).ValidateBasic())
	var nilBlock *types.ProvableBlock
	assert.Error(t, nilBlock.ValidateBasic())
}
