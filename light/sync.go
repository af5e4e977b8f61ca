package light

import (
	"bytes"
	"context"
	"fmt"

	"github.com/creachadair/taskgroup"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/light/provider"
	"github.com/tonlight/tonlight/types"
)

type keyBlock struct {
	seqno uint32
	block *types.BlockAndFileHash
}

// Sync advances the client to the key block target.
//
// Starting at target it follows prev_key_block_seqno back until it reaches
// the trusted key block, fetching each key block from p on the way. It then
// fetches the signatures of all of them concurrently and applies them with
// NewKeyBlock, oldest first. Requests are not retried: the first failure
// stops the sync, leaving the client at the last key block applied.
//
// A target at or below the trusted seqno is a no-op.
func (c *Client) Sync(ctx context.Context, p provider.Provider, target uint32) error {
	trusted := c.State()
	if target <= trusted.Seqno {
		c.logger.Debug("already synced", "trusted", trusted.Seqno, "target", target)
		return nil
	}

	chain, err := c.keyBlockChain(ctx, p, trusted.Seqno, target)
	if err != nil {
		return err
	}
	c.logger.Info("syncing key blocks", "from", trusted.Seqno, "to", target, "blocks", len(chain))

	sigs, err := c.fetchSignatures(ctx, p, chain)
	if err != nil {
		return err
	}

	for i, kb := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}
		pb, err := NewProvableBlock(kb.block, sigs[i])
		if err != nil {
			return ErrVerificationFailed{Seqno: kb.seqno, Reason: err}
		}
		if err := c.NewKeyBlock(pb); err != nil {
			return ErrVerificationFailed{Seqno: kb.seqno, Reason: err}
		}
		c.logger.Debug("synced key block", "seqno", kb.seqno, "done", i+1, "total", len(chain))
	}
	return nil
}

// keyBlockChain returns the key blocks after from up to target, in ascending
// order.
func (c *Client) keyBlockChain(ctx context.Context, p provider.BlockProvider, from, target uint32) ([]keyBlock, error) {
	var chain []keyBlock
	seqno := target
	for seqno > from {
		bz, err := p.Block(ctx, seqno)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch key block #%d: %w", seqno, err)
		}
		b, err := types.NewBlockAndFileHash(bz)
		if err != nil {
			return nil, provider.ErrBadResponse{Reason: fmt.Errorf("key block #%d: %w", seqno, err)}
		}
		block, err := b.Block()
		if err != nil {
			return nil, provider.ErrBadResponse{Reason: fmt.Errorf("key block #%d: %w", seqno, err)}
		}

		switch {
		case block.Info.SeqNo != seqno:
			return nil, provider.ErrBadResponse{
				Reason: fmt.Errorf("asked for block #%d, got #%d", seqno, block.Info.SeqNo),
			}
		case !block.Info.KeyBlock:
			return nil, ErrNotKeyBlock{Seqno: seqno}
		case block.Info.PrevKeyBlockSeqno >= seqno:
			return nil, provider.ErrBadResponse{
				Reason: fmt.Errorf("key block #%d links forward to #%d", seqno, block.Info.PrevKeyBlockSeqno),
			}
		}

		chain = append(chain, keyBlock{seqno: seqno, block: b})
		c.logger.Debug("fetched key block", "seqno", seqno, "prev", block.Info.PrevKeyBlockSeqno)
		seqno = block.Info.PrevKeyBlockSeqno
	}
	if seqno != from {
		return nil, ErrSeqnoMismatch{Expected: from, Got: seqno}
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// fetchSignatures fetches the signatures of every block in chain, keeping at
// most c.fetchConcurrency requests in flight. The first failure cancels the
// rest.
func (c *Client) fetchSignatures(
	ctx context.Context,
	p provider.SignatureProvider,
	chain []keyBlock,
) ([]*types.BlockSignatures, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sigs = make([]*types.BlockSignatures, len(chain))
		sem  = make(chan struct{}, c.fetchConcurrency)
		g    = taskgroup.New(taskgroup.Trigger(cancel))
	)
	for i, kb := range chain {
		i, kb := i, kb
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			bs, err := p.BlockSignatures(ctx, kb.seqno)
			if err != nil {
				return fmt.Errorf("failed to fetch signatures of block #%d: %w", kb.seqno, err)
			}
			sigs[i] = bs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}

// NewProvableBlock pairs a block with its signatures once the block id the
// signatures name is confirmed to be the block's. When block is a Merkle
// proof only its root hash can be confirmed.
func NewProvableBlock(block *types.BlockAndFileHash, bs *types.BlockSignatures) (*types.ProvableBlock, error) {
	rootHash, fileHash, err := bs.ID.Hashes()
	if err != nil {
		return nil, provider.ErrBadResponse{Reason: err}
	}
	blockRootHash, err := block.RootHash()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(blockRootHash, rootHash) {
		return nil, ErrHashMismatch{Expected: blockRootHash, Got: rootHash}
	}
	switch {
	case block.Root.Type() == cell.MerkleProof:
		// A proof does not carry the file it was cut from; the signed id
		// supplies the file hash.
		block = &types.BlockAndFileHash{Root: block.Root, FileHash: fileHash}
	case !bytes.Equal(block.FileHash, fileHash):
		return nil, ErrHashMismatch{Expected: block.FileHash, Got: fileHash}
	}

	sm, err := bs.SignatureMap()
	if err != nil {
		return nil, provider.ErrBadResponse{Reason: err}
	}
	return &types.ProvableBlock{Block: block, Signatures: sm}, nil
}
