// Package file serves blocks and signatures from a directory, as written by
// the header-proof command or collected from a lite server.
//
// Files are named after the network and the block seqno:
//
//	<network>-<seqno>.block            block or header proof (bag of cells)
//	<network>-<seqno>-key.block        same, for key blocks
//	<network>-<seqno>.signatures.json  toncenter signatures document
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creachadair/atomicfile"

	"github.com/tonlight/tonlight/light/provider"
	"github.com/tonlight/tonlight/types"
)

type file struct {
	dir     string
	network string
}

// Provider is a file provider; it also writes what it serves.
type Provider interface {
	provider.Provider

	SaveBlock(seqno uint32, keyBlock bool, boc []byte) error
	SaveBlockSignatures(bs *types.BlockSignatures) error
}

// New returns a provider reading the files of network from dir.
func New(dir, network string) Provider {
	return &file{dir: dir, network: network}
}

func (p *file) String() string {
	return fmt.Sprintf("file{%s %s}", p.dir, p.network)
}

func (p *file) blockPaths(seqno uint32) []string {
	base := filepath.Join(p.dir, fmt.Sprintf("%s-%d", p.network, seqno))
	return []string{base + ".block", base + "-key.block"}
}

func (p *file) signaturesPath(seqno uint32) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s-%d.signatures.json", p.network, seqno))
}

// Block reads <network>-<seqno>.block or <network>-<seqno>-key.block.
func (p *file) Block(ctx context.Context, seqno uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, path := range p.blockPaths(seqno) {
		bz, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return bz, err
	}
	return nil, provider.ErrBlockNotFound
}

// BlockSignatures reads <network>-<seqno>.signatures.json.
func (p *file) BlockSignatures(ctx context.Context, seqno uint32) (*types.BlockSignatures, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bz, err := os.ReadFile(p.signaturesPath(seqno))
	if errors.Is(err, os.ErrNotExist) {
		return nil, provider.ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	bs, err := types.UnmarshalBlockSignatures(bz)
	if err != nil {
		return nil, provider.ErrBadResponse{Reason: err}
	}
	return bs, nil
}

// SaveBlock writes boc as the block with the given seqno.
func (p *file) SaveBlock(seqno uint32, keyBlock bool, boc []byte) error {
	paths := p.blockPaths(seqno)
	path := paths[0]
	if keyBlock {
		path = paths[1]
	}
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return err
	}
	return atomicfile.WriteData(path, boc, 0644)
}

// SaveBlockSignatures writes bs under the seqno of its block id.
func (p *file) SaveBlockSignatures(bs *types.BlockSignatures) error {
	bz, err := json.MarshalIndent(bs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return err
	}
	return atomicfile.WriteData(p.signaturesPath(bs.ID.Seqno), bz, 0644)
}
