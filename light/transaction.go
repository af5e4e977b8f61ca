package light

import (
	"bytes"
	"errors"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/merkle"
	"github.com/tonlight/tonlight/tlb"
	"github.com/tonlight/tonlight/types"
)

// VerifyTransactionProof checks that proof is a Merkle proof of the block
// with the given root hash in which the transaction txHash is present.
//
// A transaction counts as present when an exotic cell with its hash sits in
// the proof's account blocks. Transactions are pruned out of such proofs, so
// the match is on the hash the pruned cell declares.
func VerifyTransactionProof(proof *cell.Cell, rootHash, txHash []byte) error {
	root, err := merkle.Unwrap(proof)
	if err != nil {
		return err
	}
	if got := root.Hash(0); !bytes.Equal(got, rootHash) {
		return ErrHashMismatch{Expected: rootHash, Got: got}
	}

	accountBlocks, err := tlb.AccountBlocksCell(root)
	if err != nil {
		return err
	}
	if accountBlocks.RefsCount() == 0 {
		return ErrTransactionNotFound{Hash: txHash}
	}
	dict, err := accountBlocks.Ref(0)
	if err != nil {
		return err
	}
	if !containsExotic(dict, txHash) {
		return ErrTransactionNotFound{Hash: txHash}
	}
	return nil
}

// containsExotic searches the ordinary cells under root, depth first, for an
// exotic cell whose level 0 hash is hash.
func containsExotic(root *cell.Cell, hash []byte) bool {
	var (
		stack   = []*cell.Cell{root}
		visited = make(map[string]bool)
	)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if c.IsExotic() {
			if bytes.Equal(c.Hash(0), hash) {
				return true
			}
			continue
		}
		key := string(c.RepresentationHash())
		if visited[key] {
			continue
		}
		visited[key] = true
		stack = append(stack, c.Refs()...)
	}
	return false
}

// CheckTransaction proves that the transaction txHash is included in the
// block pb and that pb is authentic: proof must be a Merkle proof of pb
// exposing the transaction, and pb must pass CheckBlock.
//
// A CheckBlock failure is returned as ErrInvalidBlock.
func (c *Client) CheckTransaction(pb *types.ProvableBlock, proof *cell.Cell, txHash []byte) error {
	if pb == nil {
		return errors.New("nil provable block")
	}
	if err := pb.Block.ValidateBasic(); err != nil {
		return err
	}
	rootHash, err := pb.Block.RootHash()
	if err != nil {
		return err
	}

	if err := VerifyTransactionProof(proof, rootHash, txHash); err != nil {
		c.logger.Debug("transaction proof rejected", "tx", log.Hexadecimal(txHash), "err", err)
		c.metrics.VerificationFailures.With("reason", errorReason(err)).Add(1)
		return err
	}
	if err := c.CheckBlock(pb); err != nil {
		return ErrInvalidBlock{Reason: err}
	}

	c.metrics.CheckedTransactions.Add(1)
	return nil
}
