package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"conclave/internal/domain"
)

// fingerprintBytes is the truncated digest length (40 hex chars).
const fingerprintBytes = 20

// Fingerprint returns the hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 20 bytes. A nil or empty key has
// no fingerprint and yields "".
func Fingerprint(pub []byte) domain.Fingerprint {
	if len(pub) == 0 {
		return ""
	}
	sum := sha256.Sum256(pub)
	return domain.Fingerprint(hex.EncodeToString(sum[:fingerprintBytes]))
}
