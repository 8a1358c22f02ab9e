// Package crypto exposes the few primitives the trust layer needs itself.
//
// Contents
//
//   - Long-term account key generation per protocol variant (GenerateKeyPair):
//     Ed25519 for the point-to-point protocol, X25519 for the group protocol
//   - Public-key fingerprints shown to users and stored in the trust table
//     (Fingerprint)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Base64 helpers for storing key material as strings (B64, FromB64)
//
// # Notes
//
// Session cryptography (key agreement, SMP, message encryption) belongs to the
// engine; nothing here encrypts traffic. Callers should treat returned private
// keys as sensitive and rely on Wipe when practical.
package crypto
