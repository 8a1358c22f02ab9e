package crypto_test

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"golang.org/x/crypto/curve25519"

	"conclave/internal/crypto"
	"conclave/internal/domain"
)

func TestFingerprint_StableAndTruncated(t *testing.T) {
	pub := []byte("some public key bytes")

	a := crypto.Fingerprint(pub)
	b := crypto.Fingerprint(append([]byte(nil), pub...))
	if a != b {
		t.Fatalf("fingerprint not stable: %s vs %s", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("want 40 hex chars, got %d (%s)", len(a), a)
	}
	if crypto.Fingerprint([]byte("other")) == a {
		t.Fatal("different keys share a fingerprint")
	}
}

func TestFingerprint_EmptyKey(t *testing.T) {
	if fp := crypto.Fingerprint(nil); fp != "" {
		t.Fatalf("nil key should have no fingerprint, got %q", fp)
	}
}

func TestGenerateKeyPair_Direct(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(domain.KeyVariantDirect)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(kp.Public) != ed25519.PublicKeySize || len(kp.Private) != ed25519.PrivateKeySize {
		t.Fatalf("unexpected sizes pub=%d priv=%d", len(kp.Public), len(kp.Private))
	}
	sig := ed25519.Sign(ed25519.PrivateKey(kp.Private), []byte("msg"))
	if !ed25519.Verify(ed25519.PublicKey(kp.Public), []byte("msg"), sig) {
		t.Fatal("generated ed25519 pair does not verify")
	}
}

func TestGenerateKeyPair_Group(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(domain.KeyVariantGroup)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, err := curve25519.X25519(kp.Private, curve25519.Basepoint)
	if err != nil {
		t.Fatalf("x25519: %v", err)
	}
	if !bytes.Equal(pub, kp.Public) {
		t.Fatal("public key does not match private key")
	}
}

func TestGenerateKeyPair_UnknownVariant(t *testing.T) {
	if _, err := crypto.GenerateKeyPair("bogus"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3}
	crypto.Wipe(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Fatalf("not wiped: %v", b)
	}
}
