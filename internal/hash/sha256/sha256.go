// Package sha256 computes the hex digests used as content identity for pages,
// questions and answers.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements pipeline.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString returns the hex digest of s. Text is hashed byte-for-byte, no
// trimming or case folding, so edited whitespace yields a new identity.
func (h Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// Sum is a package-level shortcut for callers without an injected Hasher.
func Sum(s string) string {
	return Hasher{}.HashString(s)
}
