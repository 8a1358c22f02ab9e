// Package trust persists per-fingerprint verification state and the local
// account key pairs on top of a domain.PropertyStore.
//
// Store owns the fingerprint records and notifies subscribers when a
// fingerprint's verification actually flips. KeyManager owns the long-term
// key pairs per (account, variant); loading is pure and generation is always
// explicit. Private key material is sealed with the configured passphrase.
package trust
