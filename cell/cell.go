package cell

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

const (
	// MaxRefs is the maximum number of children a cell can reference.
	MaxRefs = 4

	// MaxDepth is the maximum depth of a cell tree.
	MaxDepth = 1024

	// HashSize is the size of a cell hash in bytes.
	HashSize = sha256.Size
)

// Type distinguishes ordinary cells from the exotic cell kinds. Exotic types
// use the tag stored in the first byte of their data.
type Type int8

const (
	Ordinary     Type = -1
	PrunedBranch Type = 1
	Library      Type = 2
	MerkleProof  Type = 3
	MerkleUpdate Type = 4
)

func (t Type) String() string {
	switch t {
	case Ordinary:
		return "ordinary"
	case PrunedBranch:
		return "pruned branch"
	case Library:
		return "library"
	case MerkleProof:
		return "merkle proof"
	case MerkleUpdate:
		return "merkle update"
	default:
		return fmt.Sprintf("unknown(%d)", int8(t))
	}
}

// Cell is an immutable node of a cell tree: up to MaxBits bits of data and up
// to MaxRefs ordered children. Hashes and depths for every level are computed
// once at construction, so a Cell is safe for concurrent use.
//
// Exotic cells keep their special layout in their data bits:
//
//	pruned branch: tag(8) mask(8) hash(256)*n depth(16)*n, no children
//	library:       tag(8) hash(256), no children
//	merkle proof:  tag(8) hash(256) depth(16), one child
//	merkle update: tag(8) hash(256)*2 depth(16)*2, two children
type Cell struct {
	typ  Type
	bits BitString
	refs []*Cell

	mask   LevelMask
	hashes [MaxLevel + 1][HashSize]byte
	depths [MaxLevel + 1]uint16
}

// New returns an ordinary cell.
func New(bits BitString, refs ...*Cell) (*Cell, error) {
	return newCell(Ordinary, bits, refs)
}

// NewExotic returns an exotic cell whose type is taken from the first byte of
// bits. The layout is validated against the type.
func NewExotic(bits BitString, refs ...*Cell) (*Cell, error) {
	if bits.Len() < 8 {
		return nil, fmt.Errorf("%w: exotic cell with %d bits has no type tag", ErrMalformedData, bits.Len())
	}
	return newCell(Type(bits.data[0]), bits, refs)
}

func newCell(typ Type, bits BitString, refs []*Cell) (*Cell, error) {
	if bits.Len() > MaxBits {
		return nil, fmt.Errorf("%w: %d bits", ErrCellOverflow, bits.Len())
	}
	if len(refs) > MaxRefs {
		return nil, fmt.Errorf("%w: %d refs", ErrCellOverflow, len(refs))
	}
	for i, r := range refs {
		if r == nil {
			return nil, fmt.Errorf("%w: nil reference at index %d", ErrMalformedData, i)
		}
	}

	c := &Cell{typ: typ, bits: bits}
	if len(refs) > 0 {
		c.refs = make([]*Cell, len(refs))
		copy(c.refs, refs)
	}

	var (
		pruned []levelHash
		err    error
	)
	switch typ {
	case Ordinary:
		for _, r := range refs {
			c.mask |= r.mask
		}
	case PrunedBranch:
		pruned, c.mask, err = parsePrunedBranch(bits, refs)
	case Library:
		err = checkLibrary(bits, refs)
	case MerkleProof:
		err = checkMerkleProof(bits, refs)
		if err == nil {
			c.mask = refs[0].mask >> 1
		}
	case MerkleUpdate:
		err = checkMerkleUpdate(bits, refs)
		if err == nil {
			c.mask = (refs[0].mask | refs[1].mask) >> 1
		}
	default:
		err = fmt.Errorf("%w: unknown exotic cell type %d", ErrMalformedData, int8(typ))
	}
	if err != nil {
		return nil, err
	}

	if err := c.computeHashes(pruned); err != nil {
		return nil, err
	}
	return c, nil
}

// computeHashes fills hashes and depths for every level. Only significant
// levels get their own representation; the others resolve to the hash of the
// closest significant level below. A pruned branch only computes its own
// representation hash and takes the lower levels from its data.
func (c *Cell) computeHashes(pruned []levelHash) error {
	hashCount := c.mask.HashCount()
	if c.typ == PrunedBranch {
		hashCount = 1
	}
	offset := c.mask.HashCount() - hashCount

	own := make([]levelHash, 0, hashCount)
	hashI := 0
	for level := 0; level <= c.mask.Level(); level++ {
		if !c.mask.IsSignificant(level) {
			continue
		}
		if hashI < offset {
			hashI++
			continue
		}

		var data []byte
		if hashI == offset {
			data = c.bits.paddedBytes()
		} else {
			prev := own[hashI-offset-1].hash
			data = prev[:]
		}

		childLevel := level
		if c.typ == MerkleProof || c.typ == MerkleUpdate {
			childLevel = level + 1
		}

		var depth uint16
		for _, r := range c.refs {
			if d := r.Depth(childLevel); d > depth {
				depth = d
			}
		}
		if len(c.refs) > 0 {
			depth++
			if depth > MaxDepth {
				return fmt.Errorf("%w: depth %d exceeds %d", ErrMalformedData, depth, MaxDepth)
			}
		}

		h := sha256.New()
		h.Write([]byte{c.refsDescriptor(c.mask.Apply(level)), c.bits.descriptor()})
		h.Write(data)
		var d [2]byte
		for _, r := range c.refs {
			binary.BigEndian.PutUint16(d[:], r.Depth(childLevel))
			h.Write(d[:])
		}
		for _, r := range c.refs {
			h.Write(r.Hash(childLevel))
		}

		var lh levelHash
		copy(lh.hash[:], h.Sum(nil))
		lh.depth = depth
		own = append(own, lh)
		hashI++
	}

	for i := 0; i <= MaxLevel; i++ {
		idx := c.mask.Apply(i).HashIndex()
		if c.typ == PrunedBranch {
			if idx != c.mask.HashIndex() {
				c.hashes[i], c.depths[i] = pruned[idx].hash, pruned[idx].depth
				continue
			}
			idx = 0
		}
		c.hashes[i], c.depths[i] = own[idx].hash, own[idx].depth
	}
	return nil
}

// refsDescriptor is the d1 byte: reference count, exotic flag and level mask.
func (c *Cell) refsDescriptor(mask LevelMask) byte {
	d := byte(len(c.refs)) + byte(mask)<<5
	if c.typ != Ordinary {
		d += 8
	}
	return d
}

// Type returns the cell type.
func (c *Cell) Type() Type { return c.typ }

// IsExotic reports whether the cell is not an ordinary cell.
func (c *Cell) IsExotic() bool { return c.typ != Ordinary }

// Bits returns the raw data bits of the cell. For exotic cells these are the
// exotic layout, tag included.
func (c *Cell) Bits() BitString { return c.bits }

// LevelMask returns the level mask of the cell.
func (c *Cell) LevelMask() LevelMask { return c.mask }

// Level returns the verification level of the cell.
func (c *Cell) Level() int { return c.mask.Level() }

// RefsCount returns the number of children.
func (c *Cell) RefsCount() int { return len(c.refs) }

// Ref returns the i-th child. Pruned branches and library cells have no
// children to expose.
func (c *Cell) Ref(i int) (*Cell, error) {
	if c.typ == PrunedBranch || c.typ == Library {
		return nil, ErrExoticCell{Type: c.typ}
	}
	if i < 0 || i >= len(c.refs) {
		return nil, fmt.Errorf("%w: reference %d of %d", ErrMalformedData, i, len(c.refs))
	}
	return c.refs[i], nil
}

// Refs returns a copy of the children list.
func (c *Cell) Refs() []*Cell {
	out := make([]*Cell, len(c.refs))
	copy(out, c.refs)
	return out
}

// Hash returns the hash of the cell at the given level, clamped to
// [0, MaxLevel]. Hash(0) of a tree with pruned branches equals the hash of
// the original, unpruned tree.
func (c *Cell) Hash(level int) []byte {
	h := c.hashes[clampLevel(level)]
	return h[:]
}

// Depth returns the depth of the cell at the given level.
func (c *Cell) Depth(level int) uint16 {
	return c.depths[clampLevel(level)]
}

// RepresentationHash returns the hash of the cell as it is actually stored,
// pruned branches included. Bag-of-cells encoding deduplicates by it.
func (c *Cell) RepresentationHash() []byte {
	return c.Hash(MaxLevel)
}

// Equal reports whether both cells have the same representation hash.
func (c *Cell) Equal(o *Cell) bool {
	if c == nil || o == nil {
		return c == o
	}
	return bytes.Equal(c.RepresentationHash(), o.RepresentationHash())
}

// BeginParse returns a cursor over the data and children of an ordinary cell.
func (c *Cell) BeginParse() (*Slice, error) {
	if c.typ != Ordinary {
		return nil, ErrExoticCell{Type: c.typ}
	}
	return newSlice(c.bits, c.refs), nil
}

// MustBeginParse is like BeginParse but panics on exotic cells. Intended for
// cells built locally.
func (c *Cell) MustBeginParse() *Slice {
	s, err := c.BeginParse()
	if err != nil {
		panic(err)
	}
	return s
}

func (c *Cell) String() string {
	return fmt.Sprintf("Cell{%v %d bits %d refs %X}", c.typ, c.bits.Len(), len(c.refs), c.Hash(0)[:8])
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
