// Package commands defines the conclave CLI and wires dependencies for subcommands.
//
// Commands
//
//   - keygen         Generate a long-term key pair for the account
//   - fingerprint    Print the local fingerprint, optionally as a QR code
//   - migrate        Import legacy per-account keys into the key store
//   - trust          List, show, verify and unverify peer fingerprints
//   - send           Send a one-to-one message through the relay
//   - recv           Fetch queued messages from the relay
//
// # Configuration
//
// Settings resolve from flags, then CONCLAVE_* environment variables, then
// conclave.yaml in the home directory, then built-in defaults.
//
// # Implementation
//
// The root command loads the configuration and builds the dependency graph
// (stores, trust, session registry, relay client) before any subcommand
// runs, and tears it down afterwards.
package commands
