package cell

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	bocMagicGeneric    = 0xb5ee9c72
	bocMagicIndexed    = 0x68ff65f3
	bocMagicIndexedCRC = 0xacc3a728
)

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// FromBOC decodes a bag of cells holding exactly one root.
func FromBOC(data []byte) (*Cell, error) {
	roots, err := FromBOCMultiRoot(data)
	if err != nil {
		return nil, err
	}
	if len(roots) != 1 {
		return nil, fmt.Errorf("%w: expected one root, got %d", ErrMalformedData, len(roots))
	}
	return roots[0], nil
}

type rawCell struct {
	exotic bool
	mask   LevelMask
	bits   BitString
	refs   []int
}

// FromBOCMultiRoot decodes a bag of cells and returns all of its roots, with
// every shared subtree resolved into the tree.
func FromBOCMultiRoot(data []byte) ([]*Cell, error) {
	r := &byteReader{data: data}

	magic, err := r.uint(4)
	if err != nil {
		return nil, err
	}

	var (
		hasIdx, hasCRC bool
		size           int
	)
	switch magic {
	case bocMagicGeneric:
		flags, err := r.uint(1)
		if err != nil {
			return nil, err
		}
		hasIdx = flags&0x80 != 0
		hasCRC = flags&0x40 != 0
		if (flags>>3)&3 != 0 {
			return nil, fmt.Errorf("%w: reserved boc flags %02x", ErrMalformedData, flags)
		}
		size = int(flags & 7)
	case bocMagicIndexed, bocMagicIndexedCRC:
		hasIdx = true
		hasCRC = magic == bocMagicIndexedCRC
		s, err := r.uint(1)
		if err != nil {
			return nil, err
		}
		size = int(s)
	default:
		return nil, fmt.Errorf("%w: unknown boc magic %08x", ErrMalformedData, magic)
	}
	if size < 1 || size > 4 {
		return nil, fmt.Errorf("%w: boc ref size %d", ErrMalformedData, size)
	}

	offBytes, err := r.uint(1)
	if err != nil {
		return nil, err
	}
	if offBytes < 1 || offBytes > 8 {
		return nil, fmt.Errorf("%w: boc offset size %d", ErrMalformedData, offBytes)
	}

	cellsCount, err := r.uint(size)
	if err != nil {
		return nil, err
	}
	rootsCount, err := r.uint(size)
	if err != nil {
		return nil, err
	}
	absent, err := r.uint(size)
	if err != nil {
		return nil, err
	}
	totalSize, err := r.uint(int(offBytes))
	if err != nil {
		return nil, err
	}
	if absent != 0 {
		return nil, fmt.Errorf("%w: %d absent cells are not supported", ErrMalformedData, absent)
	}
	if rootsCount == 0 || rootsCount > cellsCount || cellsCount > totalSize/2+1 ||
		totalSize > uint64(len(data)) {
		return nil, fmt.Errorf("%w: boc header with %d cells, %d roots, %d bytes",
			ErrMalformedData, cellsCount, rootsCount, totalSize)
	}

	rootIdx := []uint64{0}
	if magic == bocMagicGeneric {
		rootIdx = make([]uint64, rootsCount)
		for i := range rootIdx {
			if rootIdx[i], err = r.uint(size); err != nil {
				return nil, err
			}
		}
	}
	if hasIdx {
		if err := r.skip(int(cellsCount) * int(offBytes)); err != nil {
			return nil, err
		}
	}

	cellData, err := r.bytes(int(totalSize))
	if err != nil {
		return nil, err
	}
	if hasCRC {
		body := len(data) - r.left()
		sum, err := r.bytes(4)
		if err != nil {
			return nil, err
		}
		if got := crc32.Checksum(data[:body], crc32c); got != binary.LittleEndian.Uint32(sum) {
			return nil, fmt.Errorf("%w: crc32c mismatch", ErrMalformedData)
		}
	}
	if r.left() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedData, r.left())
	}

	raws, err := readRawCells(cellData, int(cellsCount), size)
	if err != nil {
		return nil, err
	}

	cells := make([]*Cell, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		raw := raws[i]
		refs := make([]*Cell, len(raw.refs))
		for j, idx := range raw.refs {
			refs[j] = cells[idx]
		}
		var c *Cell
		if raw.exotic {
			c, err = NewExotic(raw.bits, refs...)
		} else {
			c, err = New(raw.bits, refs...)
		}
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		if c.mask != raw.mask {
			return nil, fmt.Errorf("%w: cell %d stores level mask %d, computed %d", ErrMalformedData, i, raw.mask, c.mask)
		}
		cells[i] = c
	}

	roots := make([]*Cell, len(rootIdx))
	for i, idx := range rootIdx {
		if idx >= cellsCount {
			return nil, fmt.Errorf("%w: root index %d of %d cells", ErrMalformedData, idx, cellsCount)
		}
		roots[i] = cells[idx]
	}
	return roots, nil
}

func readRawCells(data []byte, count, size int) ([]rawCell, error) {
	r := &byteReader{data: data}
	raws := make([]rawCell, count)
	for i := range raws {
		d, err := r.bytes(2)
		if err != nil {
			return nil, err
		}
		d1, d2 := d[0], d[1]
		refsCount := int(d1 & 7)
		if refsCount > MaxRefs {
			return nil, fmt.Errorf("%w: cell %d has %d refs", ErrMalformedData, i, refsCount)
		}
		raw := rawCell{exotic: d1&8 != 0, mask: LevelMask(d1 >> 5)}
		if d1&16 != 0 {
			if err := r.skip(raw.mask.HashCount() * (HashSize + 2)); err != nil {
				return nil, err
			}
		}

		payload, err := r.bytes((int(d2) + 1) / 2)
		if err != nil {
			return nil, err
		}
		if d2%2 == 1 {
			raw.bits, err = unpadBits(payload)
		} else {
			raw.bits, err = NewBitString(payload, len(payload)*8)
		}
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}

		raw.refs = make([]int, refsCount)
		for j := range raw.refs {
			idx, err := r.uint(size)
			if err != nil {
				return nil, err
			}
			if idx <= uint64(i) || idx >= uint64(count) {
				return nil, fmt.Errorf("%w: cell %d references cell %d", ErrMalformedData, i, idx)
			}
			raw.refs[j] = int(idx)
		}
		raws[i] = raw
	}
	if r.left() != 0 {
		return nil, fmt.Errorf("%w: %d unused bytes in cell data", ErrMalformedData, r.left())
	}
	return raws, nil
}

// ToBOC encodes the trees rooted at roots as a bag of cells with a crc32c
// checksum and no index. Identical subtrees are stored once.
func ToBOC(roots ...*Cell) ([]byte, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no roots", ErrMalformedData)
	}
	order, index := topologicalOrder(roots)

	size := bytesFor(uint64(len(order)))
	var cellData []byte
	for _, c := range order {
		cellData = append(cellData, c.refsDescriptor(c.mask), c.bits.descriptor())
		cellData = append(cellData, c.bits.paddedBytes()...)
		for _, r := range c.refs {
			cellData = appendUint(cellData, uint64(index[string(r.RepresentationHash())]), size)
		}
	}
	offBytes := bytesFor(uint64(len(cellData)))

	out := make([]byte, 0, 4+2+3*size+offBytes+len(roots)*size+len(cellData)+4)
	out = appendUint(out, bocMagicGeneric, 4)
	out = append(out, 0x40|byte(size), byte(offBytes))
	out = appendUint(out, uint64(len(order)), size)
	out = appendUint(out, uint64(len(roots)), size)
	out = appendUint(out, 0, size)
	out = appendUint(out, uint64(len(cellData)), offBytes)
	for _, root := range roots {
		out = appendUint(out, uint64(index[string(root.RepresentationHash())]), size)
	}
	out = append(out, cellData...)

	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc32.Checksum(out, crc32c))
	return append(out, sum[:]...), nil
}

// topologicalOrder lists every distinct cell so that parents precede their
// children.
func topologicalOrder(roots []*Cell) ([]*Cell, map[string]int) {
	seen := make(map[string]bool)
	var post []*Cell
	var visit func(c *Cell)
	visit = func(c *Cell) {
		key := string(c.RepresentationHash())
		if seen[key] {
			return
		}
		seen[key] = true
		for _, r := range c.refs {
			visit(r)
		}
		post = append(post, c)
	}
	for i := len(roots) - 1; i >= 0; i-- {
		visit(roots[i])
	}

	order := make([]*Cell, len(post))
	index := make(map[string]int, len(post))
	for i, c := range post {
		j := len(post) - 1 - i
		order[j] = c
		index[string(c.RepresentationHash())] = j
	}
	return order, index
}

func bytesFor(v uint64) int {
	n := 1
	for v >= 1<<(8*uint(n)) && n < 8 {
		n++
	}
	return n
}

func appendUint(out []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		out = append(out, byte(v>>(8*uint(i))))
	}
	return out
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) left() int { return len(r.data) - r.pos }

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || n > r.left() {
		return nil, fmt.Errorf("%w: need %d bytes, %d left", ErrMalformedData, n, r.left())
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) skip(n int) error {
	_, err := r.bytes(n)
	return err
}

func (r *byteReader) uint(n int) (uint64, error) {
	b, err := r.bytes(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}
