package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/thinkink/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Note returns the version tag of a note's mutable fields. It changes
// whenever the title or the extracted text changes.
func Note(n models.Note) string {
	h := sha256.New()
	h.Write([]byte(n.Title))
	h.Write([]byte{0})
	h.Write([]byte(n.ExtractedText))
	return hex.EncodeToString(h.Sum(nil))
}
