package tlb

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/tonlight/tonlight/cell"
)

// LeafFunc is called for every entry of a dictionary with the full key and a
// slice positioned at the value. For augmented dictionaries the value starts
// with the leaf's extra.
type LeafFunc func(key cell.BitString, value *cell.Slice) error

// Hashmap is a binary trie dictionary with fixed-width keys. Nodes store an
// edge label and either a value or two children; see hm_edge in block.tlb.
// Augmented forks carry an extra after the two children, which walking
// ignores, so the same type serves HashmapAug.
type Hashmap struct {
	root    *cell.Cell
	keyBits int
}

// NewHashmap returns a dictionary whose root node is stored at the start of
// root. A nil root is the empty dictionary.
func NewHashmap(root *cell.Cell, keyBits int) Hashmap {
	return Hashmap{root: root, keyBits: keyBits}
}

// LoadHashmapE reads a HashmapE: a presence bit followed by the root
// reference when the dictionary is not empty.
func LoadHashmapE(s *cell.Slice, keyBits int) (Hashmap, error) {
	root, err := s.LoadMaybeRef()
	if err != nil {
		return Hashmap{}, decodeErr("HashmapE", err)
	}
	return NewHashmap(root, keyBits), nil
}

// Root returns the root cell, or nil for an empty dictionary.
func (h Hashmap) Root() *cell.Cell { return h.root }

// KeyBits returns the key width.
func (h Hashmap) KeyBits() int { return h.keyBits }

// IsEmpty reports whether the dictionary has no entries.
func (h Hashmap) IsEmpty() bool { return h.root == nil }

// MaxDictNodes bounds the dictionary nodes one decode may visit. A bag of
// cells can point both children of a fork at the same cell, so a few dozen
// cells are enough to describe 2^64 leaves.
const MaxDictNodes = 1 << 20

// nodeBudget is shared by the walks of one decode, nested ones included.
type nodeBudget struct {
	left int
}

func newNodeBudget() *nodeBudget {
	return &nodeBudget{left: MaxDictNodes}
}

func (b *nodeBudget) spend() error {
	if b.left == 0 {
		return decodeErrf("Hashmap", "more than %d dictionary nodes", MaxDictNodes)
	}
	b.left--
	return nil
}

// ForEach calls fn for every entry in key order. Pruned subtrees are an error.
func (h Hashmap) ForEach(fn LeafFunc) error {
	return h.walk(false, newNodeBudget(), fn)
}

// ForEachPresent is like ForEach but silently skips subtrees replaced by
// pruned branches, as found in Merkle proofs.
func (h Hashmap) ForEachPresent(fn LeafFunc) error {
	return h.walk(true, newNodeBudget(), fn)
}

func (h Hashmap) walk(skipPruned bool, budget *nodeBudget, fn LeafFunc) error {
	if h.root == nil {
		return nil
	}
	s, err := h.root.BeginParse()
	if err != nil {
		if skipPruned && isPruned(err) {
			return nil
		}
		return decodeErr("Hashmap", err)
	}
	return walkInline(s, h.keyBits, skipPruned, budget, fn)
}

// walkInline walks a dictionary whose root node starts at the current
// position of s, as in HashmapAug fields embedded in a larger structure. On
// return s is positioned after the root node's label and children; a fork's
// extra is left unread.
func walkInline(s *cell.Slice, keyBits int, skipPruned bool, budget *nodeBudget, fn LeafFunc) error {
	w := walker{skipPruned: skipPruned, budget: budget, fn: fn}
	return w.node(s, cell.BitString{}, keyBits)
}

type walker struct {
	skipPruned bool
	budget     *nodeBudget
	fn         LeafFunc
}

// node recurses at most keyBits times: every fork consumes at least one key
// bit. The budget bounds the total work.
func (w walker) node(s *cell.Slice, prefix cell.BitString, m int) error {
	if err := w.budget.spend(); err != nil {
		return err
	}
	label, err := loadLabel(s, m)
	if err != nil {
		return err
	}
	key := prefix.Append(label)
	m -= label.Len()
	if m == 0 {
		return w.fn(key, s)
	}

	for _, bit := range []bool{false, true} {
		child, err := s.LoadRef()
		if err != nil {
			return decodeErr("Hashmap", err)
		}
		cs, err := child.BeginParse()
		if err != nil {
			if w.skipPruned && isPruned(err) {
				continue
			}
			return decodeErr("Hashmap", err)
		}
		if err := w.node(cs, key.AppendBit(bit), m-1); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a slice positioned at the value stored under key, or nil when
// the key is absent.
func (h Hashmap) Get(key cell.BitString) (*cell.Slice, error) {
	if key.Len() != h.keyBits {
		return nil, decodeErrf("Hashmap", "key of %d bits, expected %d", key.Len(), h.keyBits)
	}
	if h.root == nil {
		return nil, nil
	}
	c := h.root
	pos, m := 0, h.keyBits
	for {
		s, err := c.BeginParse()
		if err != nil {
			return nil, decodeErr("Hashmap", err)
		}
		label, err := loadLabel(s, m)
		if err != nil {
			return nil, err
		}
		want, err := key.Sub(pos, label.Len())
		if err != nil || !want.Equal(label) {
			return nil, nil
		}
		pos += label.Len()
		m -= label.Len()
		if m == 0 {
			return s, nil
		}

		left, err := s.LoadRef()
		if err != nil {
			return nil, decodeErr("Hashmap", err)
		}
		right, err := s.LoadRef()
		if err != nil {
			return nil, decodeErr("Hashmap", err)
		}
		c = left
		if key.Bit(pos) {
			c = right
		}
		pos++
		m--
	}
}

// GetUint is Get with an unsigned integer key.
func (h Hashmap) GetUint(key uint64) (*cell.Slice, error) {
	k, err := uintKey(key, h.keyBits)
	if err != nil {
		return nil, err
	}
	return h.Get(k)
}

func uintKey(key uint64, n int) (cell.BitString, error) {
	b := cell.NewBuilder().StoreUint(key, n)
	if err := b.Err(); err != nil {
		return cell.BitString{}, decodeErr("Hashmap", err)
	}
	c, err := b.EndCell()
	if err != nil {
		return cell.BitString{}, decodeErr("Hashmap", err)
	}
	return c.Bits(), nil
}

func isPruned(err error) bool {
	var e cell.ErrExoticCell
	return errors.As(err, &e) && e.Type == cell.PrunedBranch
}

// labelLenBits is the width of the length field of long and same labels,
// ceil(log2(m+1)).
func labelLenBits(m int) int {
	return bits.Len(uint(m))
}

func loadLabel(s *cell.Slice, m int) (cell.BitString, error) {
	long, err := s.LoadBit()
	if err != nil {
		return cell.BitString{}, decodeErr("HmLabel", err)
	}

	// hml_short$0
	if !long {
		n := 0
		for {
			one, err := s.LoadBit()
			if err != nil {
				return cell.BitString{}, decodeErr("HmLabel", err)
			}
			if !one {
				break
			}
			n++
		}
		if n > m {
			return cell.BitString{}, decodeErrf("HmLabel", "label of %d bits for %d-bit key", n, m)
		}
		label, err := s.LoadBits(n)
		if err != nil {
			return cell.BitString{}, decodeErr("HmLabel", err)
		}
		return label, nil
	}

	same, err := s.LoadBit()
	if err != nil {
		return cell.BitString{}, decodeErr("HmLabel", err)
	}

	// hml_long$10
	if !same {
		n, err := s.LoadUint(labelLenBits(m))
		if err != nil {
			return cell.BitString{}, decodeErr("HmLabel", err)
		}
		if int(n) > m {
			return cell.BitString{}, decodeErrf("HmLabel", "label of %d bits for %d-bit key", n, m)
		}
		label, err := s.LoadBits(int(n))
		if err != nil {
			return cell.BitString{}, decodeErr("HmLabel", err)
		}
		return label, nil
	}

	// hml_same$11
	v, err := s.LoadBit()
	if err != nil {
		return cell.BitString{}, decodeErr("HmLabel", err)
	}
	n, err := s.LoadUint(labelLenBits(m))
	if err != nil {
		return cell.BitString{}, decodeErr("HmLabel", err)
	}
	if int(n) > m {
		return cell.BitString{}, decodeErrf("HmLabel", "label of %d bits for %d-bit key", n, m)
	}
	label := cell.BitString{}
	for i := 0; i < int(n); i++ {
		label = label.AppendBit(v)
	}
	return label, nil
}

// HashmapEntry is one entry to store in a dictionary. Store writes the value,
// including the extra for augmented dictionaries.
type HashmapEntry struct {
	Key   cell.BitString
	Store func(b *cell.Builder) error
}

// ForkExtraFunc writes the extra of an augmented fork covering entries. Plain
// dictionaries pass nil.
type ForkExtraFunc func(b *cell.Builder, entries []HashmapEntry)

// BuildHashmap stores entries as a dictionary and returns its root cell, or
// nil when there are no entries. Labels use the shortest encoding.
func BuildHashmap(keyBits int, entries []HashmapEntry, forkExtra ForkExtraFunc) (*cell.Cell, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	b := cell.NewBuilder()
	if err := StoreHashmapInline(b, keyBits, entries, forkExtra); err != nil {
		return nil, err
	}
	return b.EndCell()
}

// StoreHashmapInline writes the root node of a non-empty dictionary into b.
func StoreHashmapInline(b *cell.Builder, keyBits int, entries []HashmapEntry, forkExtra ForkExtraFunc) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty dictionary has no root node", cell.ErrMalformedData)
	}
	sorted := make([]HashmapEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Key.Bytes(), sorted[j].Key.Bytes()) < 0
	})
	for i, e := range sorted {
		if e.Key.Len() != keyBits {
			return fmt.Errorf("%w: key of %d bits, expected %d", cell.ErrMalformedData, e.Key.Len(), keyBits)
		}
		if i > 0 && e.Key.Equal(sorted[i-1].Key) {
			return fmt.Errorf("%w: duplicate key %v", cell.ErrMalformedData, e.Key)
		}
	}
	return storeNode(b, sorted, 0, keyBits, forkExtra)
}

func storeNode(b *cell.Builder, entries []HashmapEntry, depth, m int, forkExtra ForkExtraFunc) error {
	l := commonPrefix(entries, depth, m)
	label, _ := entries[0].Key.Sub(depth, l)
	storeLabel(b, label, m)
	if l == m {
		if err := entries[0].Store(b); err != nil {
			return err
		}
		return b.Err()
	}

	split := sort.Search(len(entries), func(i int) bool {
		return entries[i].Key.Bit(depth + l)
	})
	for _, part := range [][]HashmapEntry{entries[:split], entries[split:]} {
		cb := cell.NewBuilder()
		if err := storeNode(cb, part, depth+l+1, m-l-1, forkExtra); err != nil {
			return err
		}
		child, err := cb.EndCell()
		if err != nil {
			return err
		}
		b.StoreRef(child)
	}
	if forkExtra != nil {
		forkExtra(b, entries)
	}
	return b.Err()
}

// commonPrefix is the length of the longest key prefix shared by all entries
// past depth. A single entry shares all remaining m bits with itself.
func commonPrefix(entries []HashmapEntry, depth, m int) int {
	first, last := entries[0].Key, entries[len(entries)-1].Key
	l := 0
	for l < m && first.Bit(depth+l) == last.Bit(depth+l) {
		l++
	}
	return l
}

func storeLabel(b *cell.Builder, label cell.BitString, m int) {
	n := label.Len()
	lenBits := labelLenBits(m)

	shortLen := 2*n + 2
	longLen := 2 + lenBits + n
	sameLen := 3 + lenBits

	same := true
	for i := 1; i < n; i++ {
		if label.Bit(i) != label.Bit(0) {
			same = false
			break
		}
	}

	switch {
	case same && n > 0 && sameLen < shortLen && sameLen < longLen:
		b.StoreBit(true).StoreBit(true).StoreBit(label.Bit(0)).StoreUint(uint64(n), lenBits)
	case longLen < shortLen:
		b.StoreBit(true).StoreBit(false).StoreUint(uint64(n), lenBits).StoreBits(label)
	default:
		b.StoreBit(false)
		for i := 0; i < n; i++ {
			b.StoreBit(true)
		}
		b.StoreBit(false).StoreBits(label)
	}
}
