package config

import (
	"crypto/sha256"
	"encoding/hex"
)

// formatVersion is bumped when the synthesized output changes shape,
// so fingerprints of older outputs no longer match.
const formatVersion = "v1"

// Fingerprint computes a deterministic key over the inputs of a run
// (options, universe and facts contents).
func Fingerprint(inputs ...[]byte) string {
	h := sha256.New()
	for _, in := range inputs {
		h.Write(in)
		h.Write([]byte("\x00"))
	}
	h.Write([]byte(formatVersion))
	return hex.EncodeToString(h.Sum(nil))[:16] // First 16 hex chars = 64 bits
}
