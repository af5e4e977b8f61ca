package types

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/tlb"
)

// BlockAndFileHash binds the root of a block to the hash of the block's
// serialized file. Root is either the full block or a Merkle proof of it,
// such as a header proof. The file hash is never derived from Root: a proof
// does not carry the bytes it would be computed from.
type BlockAndFileHash struct {
	Root     *cell.Cell
	FileHash []byte
}

// NewBlockAndFileHash decodes a serialized block and hashes its bytes.
func NewBlockAndFileHash(boc []byte) (*BlockAndFileHash, error) {
	root, err := cell.FromBOC(boc)
	if err != nil {
		return nil, err
	}
	fileHash := sha256.Sum256(boc)
	return &BlockAndFileHash{Root: root, FileHash: fileHash[:]}, nil
}

// ValidateBasic performs basic validation.
func (b *BlockAndFileHash) ValidateBasic() error {
	if b == nil || b.Root == nil {
		return errors.New("nil block")
	}
	if len(b.FileHash) != sha256.Size {
		return fmt.Errorf("file hash is %d bytes, expected %d", len(b.FileHash), sha256.Size)
	}
	return nil
}

// BlockRoot returns the root of the block: Root itself, or the virtual root
// when Root is a Merkle proof.
func (b *BlockAndFileHash) BlockRoot() (*cell.Cell, error) {
	switch b.Root.Type() {
	case cell.Ordinary:
		return b.Root, nil
	case cell.MerkleProof:
		return b.Root.Ref(0)
	default:
		return nil, fmt.Errorf("%w: block root is a %v cell", cell.ErrMalformedData, b.Root.Type())
	}
}

// RootHash returns the hash validators sign: the level 0 hash of the block
// root, which pruning does not change.
func (b *BlockAndFileHash) RootHash() ([]byte, error) {
	root, err := b.BlockRoot()
	if err != nil {
		return nil, err
	}
	return root.Hash(0), nil
}

// Block decodes the block.
func (b *BlockAndFileHash) Block() (*tlb.Block, error) {
	root, err := b.BlockRoot()
	if err != nil {
		return nil, err
	}
	return tlb.LoadBlock(root)
}

// Matches reports whether the block has the given root and file hashes.
func (b *BlockAndFileHash) Matches(rootHash, fileHash []byte) bool {
	rh, err := b.RootHash()
	return err == nil && bytes.Equal(rh, rootHash) && bytes.Equal(b.FileHash, fileHash)
}

// ProvableBlock is a block together with the signatures proving it.
type ProvableBlock struct {
	Block      *BlockAndFileHash
	Signatures SignatureMap
}

// ValidateBasic performs basic validation.
func (pb *ProvableBlock) ValidateBasic() error {
	if pb == nil {
		return errors.New("nil provable block")
	}
	if err := pb.Block.ValidateBasic(); err != nil {
		return err
	}
	return pb.Signatures.ValidateBasic()
}
