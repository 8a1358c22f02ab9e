// Package enginetest provides an in-memory session engine for tests.
//
// Engine records every call made into it and simulates just enough of a
// real engine to exercise the session host: BroadcastMessage wraps the
// plaintext in a control envelope and asks the host to broadcast it, and
// HandleBroadcast unwraps envelopes of its own session and hands the
// plaintext back through DeliverBroadcast. Codec recognises that envelope.
package enginetest
