package tlb

import (
	"encoding/binary"

	"github.com/tonlight/tonlight/cell"
)

const accountBlockTag = 0x5

// AccountBlock lists the transactions of one account within a block.
//
//	acc_trans#5 account_addr:bits256
//	  transactions:(HashmapAug 64 ^Transaction CurrencyCollection)
//	  state_update:^(HASH_UPDATE Account) = AccountBlock;
type AccountBlock struct {
	Account      [32]byte
	Transactions []Transaction
	StateUpdate  *cell.Cell
}

// Transaction is a transaction cell keyed by its logical time.
type Transaction struct {
	Lt   uint64
	Cell *cell.Cell
}

// LoadShardAccountBlocks decodes the account_blocks cell of a block extra.
//
//	_ (HashmapAugE 256 AccountBlock CurrencyCollection) = ShardAccountBlocks;
func LoadShardAccountBlocks(c *cell.Cell) ([]AccountBlock, error) {
	return loadShardAccountBlocks(c, false)
}

func loadShardAccountBlocks(c *cell.Cell, skipPruned bool) ([]AccountBlock, error) {
	s, err := c.BeginParse()
	if err != nil {
		if skipPruned && isPruned(err) {
			return nil, nil
		}
		return nil, decodeErr("ShardAccountBlocks", err)
	}
	dict, err := LoadHashmapE(s, 256)
	if err != nil {
		return nil, decodeErr("ShardAccountBlocks", err)
	}

	var out []AccountBlock
	budget := newNodeBudget()
	err = dict.walk(skipPruned, budget, func(key cell.BitString, value *cell.Slice) error {
		ab, err := loadAccountBlock(value, skipPruned, budget)
		if err != nil {
			return err
		}
		if !key.Equal(cell.BitStringFromBytes(ab.Account[:])) {
			return decodeErrf("AccountBlock", "account %x stored under key %v", ab.Account, key)
		}
		out = append(out, ab)
		return nil
	})
	if err != nil {
		return nil, decodeErr("ShardAccountBlocks", err)
	}
	return out, nil
}

// loadAccountBlock reads an augmented leaf: the CurrencyCollection extra
// followed by the AccountBlock.
func loadAccountBlock(s *cell.Slice, skipPruned bool, budget *nodeBudget) (AccountBlock, error) {
	var ab AccountBlock
	if _, err := LoadCurrencyCollection(s); err != nil {
		return ab, decodeErr("AccountBlock", err)
	}
	tag, err := s.LoadUint(4)
	if err != nil {
		return ab, decodeErr("AccountBlock", err)
	}
	if err := checkTag("AccountBlock", tag, accountBlockTag, 4); err != nil {
		return ab, err
	}
	if err := loadBits256(s, &ab.Account); err != nil {
		return ab, decodeErr("AccountBlock", err)
	}

	err = walkInline(s, 64, skipPruned, budget, func(key cell.BitString, value *cell.Slice) error {
		if _, err := LoadCurrencyCollection(value); err != nil {
			return err
		}
		tx, err := value.LoadRef()
		if err != nil {
			return err
		}
		ab.Transactions = append(ab.Transactions, Transaction{
			Lt:   binary.BigEndian.Uint64(key.Bytes()),
			Cell: tx,
		})
		return nil
	})
	if err != nil {
		return ab, decodeErr("AccountBlock", err)
	}

	if ab.StateUpdate, err = s.LoadRef(); err != nil {
		return ab, decodeErr("AccountBlock", err)
	}
	return ab, nil
}

// BlockTransactions returns every transaction cell of a full block, account
// by account in key order.
func BlockTransactions(block *cell.Cell) ([]*cell.Cell, error) {
	return blockTransactions(block, false)
}

// ProofTransactions is like BlockTransactions for the virtual root of a
// Merkle proof: dictionary branches that were pruned away are skipped.
func ProofTransactions(virtualRoot *cell.Cell) ([]*cell.Cell, error) {
	return blockTransactions(virtualRoot, true)
}

func blockTransactions(root *cell.Cell, skipPruned bool) ([]*cell.Cell, error) {
	accountBlocks, err := AccountBlocksCell(root)
	if err != nil {
		return nil, err
	}
	blocks, err := loadShardAccountBlocks(accountBlocks, skipPruned)
	if err != nil {
		return nil, err
	}
	var txs []*cell.Cell
	for _, ab := range blocks {
		for _, tx := range ab.Transactions {
			txs = append(txs, tx.Cell)
		}
	}
	return txs, nil
}

// AccountBlocksCell returns the account_blocks reference of a block: the
// third reference of the block's extra.
func AccountBlocksCell(block *cell.Cell) (*cell.Cell, error) {
	extra, err := block.Ref(3)
	if err != nil {
		return nil, decodeErr("Block", err)
	}
	c, err := extra.Ref(2)
	if err != nil {
		return nil, decodeErr("BlockExtra", err)
	}
	return c, nil
}

// BuildShardAccountBlocks stores blocks as a ShardAccountBlocks cell. Fees
// are not tracked: every augmentation is an empty CurrencyCollection.
func BuildShardAccountBlocks(blocks []AccountBlock) (*cell.Cell, error) {
	entries := make([]HashmapEntry, 0, len(blocks))
	for i := range blocks {
		ab := blocks[i]
		inner, err := accountTransactionEntries(ab.Transactions)
		if err != nil {
			return nil, err
		}
		entries = append(entries, HashmapEntry{
			Key: cell.BitStringFromBytes(ab.Account[:]),
			Store: func(b *cell.Builder) error {
				CurrencyCollection{}.Store(b)
				b.StoreUint(accountBlockTag, 4).StoreBytes(ab.Account[:])
				if err := StoreHashmapInline(b, 64, inner, zeroExtra); err != nil {
					return err
				}
				b.StoreRef(ab.StateUpdate)
				return b.Err()
			},
		})
	}

	root, err := BuildHashmap(256, entries, zeroExtra)
	if err != nil {
		return nil, err
	}
	b := cell.NewBuilder().StoreMaybeRef(root)
	CurrencyCollection{}.Store(b)
	return b.EndCell()
}

func accountTransactionEntries(txs []Transaction) ([]HashmapEntry, error) {
	entries := make([]HashmapEntry, len(txs))
	for i := range txs {
		tx := txs[i]
		key, err := uintKey(tx.Lt, 64)
		if err != nil {
			return nil, err
		}
		entries[i] = HashmapEntry{Key: key, Store: func(b *cell.Builder) error {
			CurrencyCollection{}.Store(b)
			return b.StoreRef(tx.Cell).Err()
		}}
	}
	return entries, nil
}

func zeroExtra(b *cell.Builder, _ []HashmapEntry) {
	CurrencyCollection{}.Store(b)
}
