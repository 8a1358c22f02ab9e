package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const sealVersion = 2

// ErrWrongPassphrase is returned by Open when the passphrase does not match
// or the sealed value was altered.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key material")

// KDFParams are the scrypt cost parameters recorded with each sealed value.
type KDFParams struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// DefaultKDF is used by Seal.
var DefaultKDF = KDFParams{N: 1 << 15, R: 8, P: 1}

type sealed struct {
	Version int       `json:"v"`
	KDF     KDFParams `json:"kdf"`
	Salt    []byte    `json:"salt"`
	Nonce   []byte    `json:"nonce"`
	Data    []byte    `json:"data"`
}

// Seal encrypts raw under a key derived from passphrase with XChaCha20-Poly1305.
// The result is a self-describing JSON value suitable for a property store.
func Seal(passphrase string, raw []byte) ([]byte, error) {
	return SealWith(DefaultKDF, passphrase, raw)
}

// SealWith is Seal with explicit scrypt parameters.
func SealWith(kdf KDFParams, passphrase string, raw []byte) ([]byte, error) {
	s := sealed{Version: sealVersion, KDF: kdf, Salt: make([]byte, 16)}
	if _, err := rand.Read(s.Salt); err != nil {
		return nil, err
	}
	aead, err := s.aead(passphrase)
	if err != nil {
		return nil, err
	}
	s.Nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(s.Nonce); err != nil {
		return nil, err
	}
	s.Data = aead.Seal(nil, s.Nonce, raw, s.additionalData())
	return json.Marshal(s)
}

// Open reverses Seal.
func Open(passphrase string, b []byte) ([]byte, error) {
	var s sealed
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	if s.Version != sealVersion {
		return nil, fmt.Errorf("unsupported sealed value version %d", s.Version)
	}
	aead, err := s.aead(passphrase)
	if err != nil {
		return nil, err
	}
	if len(s.Nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	raw, err := aead.Open(nil, s.Nonce, s.Data, s.additionalData())
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return raw, nil
}

func (s sealed) aead(passphrase string) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), s.Salt, s.KDF.N, s.KDF.R, s.KDF.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// additionalData binds the header to the ciphertext.
func (s sealed) additionalData() []byte {
	return fmt.Appendf(nil, "conclave-seal|%d|%d|%d|%d|%x", s.Version, s.KDF.N, s.KDF.R, s.KDF.P, s.Salt)
}
