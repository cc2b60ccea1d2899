package cryptox

import (
	"encoding/hex"
	"hash"

	"github.com/zeebo/blake3"
)

// NewChecksum returns a streaming BLAKE3-256 hasher.
func NewChecksum() hash.Hash {
	return blake3.New()
}

// ChecksumHex is the hex BLAKE3-256 digest of data.
func ChecksumHex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
