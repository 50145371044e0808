package upload

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ETag fingerprints part content as a quoted blake2b-256 hex digest, the
// same shape as an HTTP entity tag. Clients keep it for bookkeeping.
func ETag(content []byte) string {
	sum := blake2b.Sum256(content)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
