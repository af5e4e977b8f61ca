package cell

import "math/bits"

// MaxLevel is the highest verification level a cell can have.
const MaxLevel = 3

// LevelMask records at which Merkle depths a cell contains pruned branches.
// Bit i set means the cell has a distinct hash at level i+1.
type LevelMask uint8

// Level is the number of the highest significant level.
func (m LevelMask) Level() int {
	return bits.Len8(uint8(m))
}

// HashIndex is the index of the last stored hash, i.e. the number of set bits.
func (m LevelMask) HashIndex() int {
	return bits.OnesCount8(uint8(m))
}

// HashCount is the number of distinct hashes a cell with this mask has.
func (m LevelMask) HashCount() int {
	return m.HashIndex() + 1
}

// Apply restricts the mask to levels below level.
func (m LevelMask) Apply(level int) LevelMask {
	return m & LevelMask((1<<uint(level))-1)
}

// IsSignificant reports whether the cell has its own hash at level.
func (m LevelMask) IsSignificant(level int) bool {
	return level == 0 || (m>>(uint(level)-1))&1 != 0
}
