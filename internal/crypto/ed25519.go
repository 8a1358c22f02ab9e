package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
)

// GenerateEd25519 returns a new Ed25519 signing key pair.
func GenerateEd25519() (priv ed25519.PrivateKey, pub ed25519.PublicKey, err error) {
	pub, priv, err = ed25519.GenerateKey(rand.Reader)
	return priv, pub, err
}
