// Package merkle builds and opens Merkle proofs over cell trees.
//
// A proof is the original tree with every subtree the verifier does not need
// replaced by a pruned branch: a constant-size cell that declares the hash and
// depth of what it replaced. Hashes at level 0 are unchanged by pruning, so a
// proof can be checked against the root hash of the full tree.
package merkle

import (
	"fmt"

	"github.com/tonlight/tonlight/cell"
)

// PrunedBranch returns the level 1 pruned branch standing in for c.
func PrunedBranch(c *cell.Cell) (*cell.Cell, error) {
	return cell.NewBuilder().
		StoreUint(uint64(cell.PrunedBranch), 8).
		StoreUint(1, 8).
		StoreBytes(c.Hash(0)).
		StoreUint(uint64(c.Depth(0)), 16).
		EndExoticCell()
}

// PruneExcept returns a copy of c with the same data in which the children at
// the keep indices are kept verbatim and every other child is pruned.
// Out-of-range indices are ignored.
func PruneExcept(c *cell.Cell, keep ...int) (*cell.Cell, error) {
	if c.IsExotic() {
		return nil, fmt.Errorf("%w: cannot prune children of %v cell", cell.ErrMalformedData, c.Type())
	}
	kept := make(map[int]bool, len(keep))
	for _, i := range keep {
		kept[i] = true
	}

	refs := c.Refs()
	for i, ref := range refs {
		if kept[i] {
			continue
		}
		pruned, err := PrunedBranch(ref)
		if err != nil {
			return nil, err
		}
		refs[i] = pruned
	}
	return cell.New(c.Bits(), refs...)
}

// ReplaceChild returns a copy of c whose i-th child is replacement.
func ReplaceChild(c *cell.Cell, i int, replacement *cell.Cell) (*cell.Cell, error) {
	if c.IsExotic() {
		return nil, fmt.Errorf("%w: cannot replace children of %v cell", cell.ErrMalformedData, c.Type())
	}
	refs := c.Refs()
	if i < 0 || i >= len(refs) {
		return nil, fmt.Errorf("%w: reference %d of %d", cell.ErrMalformedData, i, len(refs))
	}
	refs[i] = replacement
	return cell.New(c.Bits(), refs...)
}

// WrapAsProof returns the Merkle proof cell whose virtual root is c. The proof
// declares the level 0 hash and depth of c.
//
//	!merkle_proof#03 {X:Type} virtual_hash:bits256 depth:uint16
//	  virtual_root:^X = MERKLE_PROOF X;
func WrapAsProof(c *cell.Cell) (*cell.Cell, error) {
	return cell.NewBuilder().
		StoreUint(uint64(cell.MerkleProof), 8).
		StoreBytes(c.Hash(0)).
		StoreUint(uint64(c.Depth(0)), 16).
		StoreRef(c).
		EndExoticCell()
}

// Unwrap returns the virtual root of a Merkle proof cell. The declared hash
// and depth were checked against the root when the proof cell was built.
func Unwrap(proof *cell.Cell) (*cell.Cell, error) {
	if proof.Type() != cell.MerkleProof {
		return nil, fmt.Errorf("%w: expected merkle proof, got %v cell", cell.ErrMalformedData, proof.Type())
	}
	return proof.Refs()[0], nil
}
