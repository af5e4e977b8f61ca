package crypto

import (
	"crypto/sha256"
)

const (
	// HashSize is the size in bytes of a cell or file hash.
	HashSize = sha256.Size

	// NodeIDSize is the size of a validator's short node id.
	NodeIDSize = sha256.Size
)

// Checksum returns the SHA256 of the bz.
func Checksum(bz []byte) []byte {
	h := sha256.Sum256(bz)
	return h[:]
}

type PubKey interface {
	Bytes() []byte
	VerifySignature(msg []byte, sig []byte) bool
	Equals(PubKey) bool
	Type() string

	// NodeIDShort is the short id validators are addressed by in signature
	// sets.
	NodeIDShort() []byte
}

type PrivKey interface {
	Bytes() []byte
	Sign(msg []byte) ([]byte, error)
	PubKey() PubKey
	Equals(PrivKey) bool
	Type() string
}

// BatchVerifier verifies many signatures at once.
type BatchVerifier interface {
	// Add appends an entry into the BatchVerifier.
	Add(key PubKey, message, signature []byte) error
	// Verify verifies all the entries in the BatchVerifier, and returns
	// if every signature in the batch is valid, and a vector of bools
	// indicating the verification status of each signature (in the order
	// that signatures were added to the batch).
	Verify() (bool, []bool)
}
