package cell

import (
	"bytes"
	"fmt"
)

// prunedBranchLegacyBits is the size of a pruned branch written before the
// level mask byte was introduced: tag, one hash and one depth.
const prunedBranchLegacyBits = 8 + 256 + 16

type levelHash struct {
	hash  [HashSize]byte
	depth uint16
}

func parsePrunedBranch(bits BitString, refs []*Cell) ([]levelHash, LevelMask, error) {
	if len(refs) != 0 {
		return nil, 0, fmt.Errorf("%w: pruned branch has %d refs", ErrMalformedData, len(refs))
	}
	s := newSlice(bits, nil)
	if _, err := s.LoadUint(8); err != nil {
		return nil, 0, err
	}

	mask := LevelMask(1)
	if bits.Len() != prunedBranchLegacyBits {
		m, err := s.LoadUint(8)
		if err != nil {
			return nil, 0, err
		}
		mask = LevelMask(m)
	}
	if mask < 1 || mask > 7 {
		return nil, 0, fmt.Errorf("%w: pruned branch level mask %d", ErrMalformedData, mask)
	}

	n := mask.HashIndex()
	if bits.Len() != prunedBranchLegacyBits && bits.Len() != 16+n*(256+16) {
		return nil, 0, fmt.Errorf("%w: pruned branch with mask %d has %d bits", ErrMalformedData, mask, bits.Len())
	}

	out := make([]levelHash, n)
	for i := range out {
		h, err := s.LoadBytes(HashSize)
		if err != nil {
			return nil, 0, err
		}
		copy(out[i].hash[:], h)
	}
	for i := range out {
		d, err := s.LoadUint(16)
		if err != nil {
			return nil, 0, err
		}
		out[i].depth = uint16(d)
	}
	return out, mask, nil
}

func checkLibrary(bits BitString, refs []*Cell) error {
	if len(refs) != 0 || bits.Len() != 8+256 {
		return fmt.Errorf("%w: library cell with %d bits and %d refs", ErrMalformedData, bits.Len(), len(refs))
	}
	return nil
}

func checkMerkleProof(bits BitString, refs []*Cell) error {
	if len(refs) != 1 || bits.Len() != 8+256+16 {
		return fmt.Errorf("%w: merkle proof with %d bits and %d refs", ErrMalformedData, bits.Len(), len(refs))
	}
	s := newSlice(bits, nil)
	_ = s.Skip(8)
	hash, _ := s.LoadBytes(HashSize)
	depth, _ := s.LoadUint(16)
	return checkVirtualRoot(refs[0], hash, uint16(depth))
}

func checkMerkleUpdate(bits BitString, refs []*Cell) error {
	if len(refs) != 2 || bits.Len() != 8+2*256+2*16 {
		return fmt.Errorf("%w: merkle update with %d bits and %d refs", ErrMalformedData, bits.Len(), len(refs))
	}
	s := newSlice(bits, nil)
	_ = s.Skip(8)
	fromHash, _ := s.LoadBytes(HashSize)
	toHash, _ := s.LoadBytes(HashSize)
	fromDepth, _ := s.LoadUint(16)
	toDepth, _ := s.LoadUint(16)
	if err := checkVirtualRoot(refs[0], fromHash, uint16(fromDepth)); err != nil {
		return err
	}
	return checkVirtualRoot(refs[1], toHash, uint16(toDepth))
}

func checkVirtualRoot(root *Cell, hash []byte, depth uint16) error {
	if !bytes.Equal(root.Hash(0), hash) {
		return fmt.Errorf("%w: declared virtual hash %X, child hash %X", ErrMalformedData, hash, root.Hash(0))
	}
	if root.Depth(0) != depth {
		return fmt.Errorf("%w: declared virtual depth %d, child depth %d", ErrMalformedData, depth, root.Depth(0))
	}
	return nil
}
