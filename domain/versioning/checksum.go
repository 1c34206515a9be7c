package versioning

import (
	"crypto/sha256"
	"encoding/hex"
)

// SourceChecksum calculates the SHA-256 checksum of raw source text.
// Maps store it at generation time; regeneration compares it against the
// stored value to detect whether the source actually changed.
func SourceChecksum(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
