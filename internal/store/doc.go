// Package store provides persistence backends for the trust layer.
//
// It contains concrete implementations of domain.PropertyStore, the flat
// key/value contract the trust store is written against:
//   - PropertyFileStore keeps every property in a single JSON document,
//     rewritten atomically through a temp file and rename.
//   - SQLiteStore keeps properties in a single SQLite table.
//
// All methods are concurrency-safe via internal locking. Private key material
// can be sealed with a passphrase before it is stored (Seal, Open).
package store
