// Package contenthash computes canonical content hashes used to detect
// drift between a plan's staged snapshot and the file's on-disk content at
// apply time.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SHA256Hex returns the uppercase hex SHA-256 digest of s, computed over its
// UTF-8 bytes with no line-ending normalization. Equal content always yields
// equal output; this must remain stable across platforms and runs.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
