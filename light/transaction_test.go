package light_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/internal/test/factory"
	"github.com/tonlight/tonlight/light"
	"github.com/tonlight/tonlight/merkle"
	"github.com/tonlight/tonlight/tlb"
	"github.com/tonlight/tonlight/types"
)

var (
	alice = [32]byte{0xa1}
	bob   = [32]byte{0xb0}
	carol = [32]byte{0xca}
)

// blockWithTransactions returns the non-key block of the first epoch of ch,
// carrying transactions of alice and bob, and a proof of its transactions.
func blockWithTransactions(t *testing.T, ch *chain, accounts []tlb.AccountBlock) (*types.ProvableBlock, *cell.Cell) {
	t.Helper()

	root, err := factory.MakeBlock(factory.BlockSpec{
		GlobalID:          factory.MainnetGlobalID,
		Seqno:             nonKeySeqno,
		PrevKeyBlockSeqno: firstKeySeqno,
		Accounts:          accounts,
	})
	require.NoError(t, err)
	boc, err := cell.ToBOC(root)
	require.NoError(t, err)
	block, err := types.NewBlockAndFileHash(boc)
	require.NoError(t, err)

	proof, err := merkle.TransactionsProof(root)
	require.NoError(t, err)
	return &types.ProvableBlock{Block: block, Signatures: factory.SignBlock(block, ch.privs[1])}, proof
}

func TestClientCheckTransaction(t *testing.T) {
	ch := makeChain(t)
	c, err := light.NewClient(ch.genesis)
	require.NoError(t, err)
	require.NoError(t, c.NewKeyBlock(ch.provable(t, firstKeySeqno)))

	accounts := factory.MakeAccountBlocks(uint64(nonKeySeqno)*1000000, 3, alice, bob)
	pb, proof := blockWithTransactions(t, ch, accounts)

	t.Run("every transaction of the block", func(t *testing.T) {
		for _, ab := range accounts {
			for _, tx := range ab.Transactions {
				assert.NoError(t, c.CheckTransaction(pb, proof, tx.Cell.Hash(0)))
			}
		}
	})

	t.Run("transaction of another account", func(t *testing.T) {
		hash := factory.MakeTransaction(uint64(nonKeySeqno)*1000000, carol).Cell.Hash(0)
		err := c.CheckTransaction(pb, proof, hash)
		assert.Equal(t, light.ErrTransactionNotFound{Hash: hash}, err)
	})

	t.Run("cell hashes are not transactions", func(t *testing.T) {
		virtualRoot, err := merkle.Unwrap(proof)
		require.NoError(t, err)
		accountBlocks, err := tlb.AccountBlocksCell(virtualRoot)
		require.NoError(t, err)
		err = c.CheckTransaction(pb, proof, accountBlocks.Hash(0))
		assert.Equal(t, light.ErrTransactionNotFound{Hash: accountBlocks.Hash(0)}, err)
	})

	t.Run("proof of another block", func(t *testing.T) {
		other, otherProof := blockWithTransactions(t, ch, factory.MakeAccountBlocks(1, 1, carol))
		tx := accounts[0].Transactions[0].Cell.Hash(0)
		err := c.CheckTransaction(pb, otherProof, tx)
		var mismatch light.ErrHashMismatch
		require.True(t, errors.As(err, &mismatch), err)
		rootHash, err := pb.Block.RootHash()
		require.NoError(t, err)
		otherHash, err := other.Block.RootHash()
		require.NoError(t, err)
		assert.Equal(t, light.ErrHashMismatch{Expected: rootHash, Got: otherHash}, mismatch)
	})

	t.Run("not a proof", func(t *testing.T) {
		tx := accounts[0].Transactions[0].Cell.Hash(0)
		err := c.CheckTransaction(pb, pb.Block.Root, tx)
		assert.ErrorIs(t, err, cell.ErrMalformedData)
	})

	t.Run("proof without transactions", func(t *testing.T) {
		header, err := merkle.HeaderProof(pb.Block.Root)
		require.NoError(t, err)
		tx := accounts[0].Transactions[0].Cell.Hash(0)
		assert.Error(t, c.CheckTransaction(pb, header, tx))
	})

	t.Run("block signed by the wrong validators", func(t *testing.T) {
		forged := &types.ProvableBlock{Block: pb.Block, Signatures: factory.SignBlock(pb.Block, ch.privs[0])}
		tx := accounts[1].Transactions[2].Cell.Hash(0)
		err := c.CheckTransaction(forged, proof, tx)

		var invalid light.ErrInvalidBlock
		require.True(t, errors.As(err, &invalid), err)
		var unknown types.ErrUnknownSigner
		assert.True(t, errors.As(err, &unknown))
	})
}

func TestVerifyTransactionProofEmptyBlock(t *testing.T) {
	ch := makeChain(t)
	pb, proof := blockWithTransactions(t, ch, nil)
	rootHash, err := pb.Block.RootHash()
	require.NoError(t, err)

	tx := factory.MakeTransaction(1, alice).Cell.Hash(0)
	err = light.VerifyTransactionProof(proof, rootHash, tx)
	assert.Equal(t, light.ErrTransactionNotFound{Hash: tx}, err)
}
