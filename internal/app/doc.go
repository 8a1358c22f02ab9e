// Package app wires application dependencies for the CLI.
//
// LoadConfig merges flags, CONCLAVE_* environment variables and an optional
// conclave.yaml under the home directory. NewWire builds the property store,
// trust store, key manager, session registry, transform pipeline and
// authentication manager from the result, so commands share one graph.
package app
