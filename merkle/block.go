package merkle

import (
	"fmt"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/tlb"
)

// Reference positions inside a block tree.
const (
	blockInfoRef  = 0
	blockExtraRef = 3
	// custom is the last reference of BlockExtra, after the message
	// descriptors and the account blocks.
	extraCustomRef        = 3
	extraAccountBlocksRef = 2
)

// HeaderProof returns a Merkle proof of block exposing only its BlockInfo.
func HeaderProof(block *cell.Cell) (*cell.Cell, error) {
	pruned, err := PruneExcept(block, blockInfoRef)
	if err != nil {
		return nil, err
	}
	return WrapAsProof(pruned)
}

// ConfigProof returns a Merkle proof of a key block exposing its BlockInfo and
// the path to its configuration: extra, then custom, then the config
// dictionary. Everything else is pruned.
func ConfigProof(block *cell.Cell) (*cell.Cell, error) {
	extra, err := block.Ref(blockExtraRef)
	if err != nil {
		return nil, err
	}
	custom, err := extra.Ref(extraCustomRef)
	if err != nil {
		return nil, fmt.Errorf("block extra has no masterchain part: %w", err)
	}

	// The config dictionary is the last reference of McBlockExtra; the
	// optional shard dictionaries and misc come before it.
	n := custom.RefsCount()
	if n == 0 {
		return nil, fmt.Errorf("%w: masterchain extra has no references", cell.ErrMalformedData)
	}
	custom, err = PruneExcept(custom, n-1)
	if err != nil {
		return nil, err
	}

	if extra, err = PruneExcept(extra); err != nil {
		return nil, err
	}
	if extra, err = ReplaceChild(extra, extraCustomRef, custom); err != nil {
		return nil, err
	}

	root, err := PruneExcept(block, blockInfoRef)
	if err != nil {
		return nil, err
	}
	if root, err = ReplaceChild(root, blockExtraRef, extra); err != nil {
		return nil, err
	}
	return WrapAsProof(root)
}

// TransactionsProof returns a Merkle proof of a full block exposing the
// account blocks dictionary in which every transaction is pruned. The proof
// names each transaction of the block by hash without revealing it.
func TransactionsProof(block *cell.Cell) (*cell.Cell, error) {
	txs, err := tlb.BlockTransactions(block)
	if err != nil {
		return nil, err
	}
	prune := make(map[string]bool, len(txs))
	for _, tx := range txs {
		prune[string(tx.Hash(0))] = true
	}

	extra, err := block.Ref(blockExtraRef)
	if err != nil {
		return nil, err
	}
	accounts, err := extra.Ref(extraAccountBlocksRef)
	if err != nil {
		return nil, err
	}
	if accounts, err = pruneMatching(accounts, prune, make(map[string]*cell.Cell)); err != nil {
		return nil, err
	}

	if extra, err = PruneExcept(extra); err != nil {
		return nil, err
	}
	if extra, err = ReplaceChild(extra, extraAccountBlocksRef, accounts); err != nil {
		return nil, err
	}
	root, err := PruneExcept(block)
	if err != nil {
		return nil, err
	}
	if root, err = ReplaceChild(root, blockExtraRef, extra); err != nil {
		return nil, err
	}
	return WrapAsProof(root)
}

// pruneMatching rebuilds the tree under c replacing every cell whose hash is
// in prune with its pruned branch. The walk does not descend into pruned
// cells. done holds the rebuilt cells by representation hash, so a cell
// shared by several parents is rebuilt once.
func pruneMatching(c *cell.Cell, prune map[string]bool, done map[string]*cell.Cell) (*cell.Cell, error) {
	key := string(c.RepresentationHash())
	if r, ok := done[key]; ok {
		return r, nil
	}
	r, err := rebuildPruned(c, prune, done)
	if err != nil {
		return nil, err
	}
	done[key] = r
	return r, nil
}

func rebuildPruned(c *cell.Cell, prune map[string]bool, done map[string]*cell.Cell) (*cell.Cell, error) {
	if prune[string(c.Hash(0))] {
		return PrunedBranch(c)
	}
	if c.IsExotic() || c.RefsCount() == 0 {
		return c, nil
	}
	refs := c.Refs()
	for i, ref := range refs {
		r, err := pruneMatching(ref, prune, done)
		if err != nil {
			return nil, err
		}
		refs[i] = r
	}
	return cell.New(c.Bits(), refs...)
}
