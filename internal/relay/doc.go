// Package relay implements the point-to-point channel over a small HTTP
// store-and-forward relay.
//
// Client is a domain.DirectTransport: it posts envelopes to the relay and
// polls its own queue. Server is the matching in-memory relay used in
// development and tests.
//
// HTTP API
//
//	POST /msg/{user}              enqueue an Envelope for {user}
//	GET  /msg/{user}?limit=N      return up to N queued envelopes
//	POST /msg/{user}/ack {count}  drop the first count queued envelopes
//
// Requests and responses are JSON. Non-2xx statuses are returned as errors
// carrying the method, path and status text. The relay never sees
// plaintext of encrypted sessions; it stores whatever bodies it is given.
package relay
