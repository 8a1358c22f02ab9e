// Package main runs the in-memory HTTP relay used by conclave during
// development and tests. It queues direct messages for recipients until
// they fetch and acknowledge them.
//
// HTTP API
//
//	POST /msg/{user}
//	    Enqueue an Envelope destined to {user}. If Timestamp is zero, the
//	    server fills it with the current Unix time.
//
//	GET /msg/{user}?limit=N
//	    Return up to N queued Envelopes for {user}. If limit is absent or
//	    greater than the queue length, all queued envelopes are returned.
//
//	POST /msg/{user}/ack { "count": N }
//	    Drop the first N queued envelopes for {user}. If N exceeds the queue
//	    length, the queue is cleared.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Responses are JSON. Non-2xx statuses carry a short error message.
//   - Every request is access-logged through zap.
//   - The default listen address is :8080. SIGINT or SIGTERM drains open
//     requests before exit.
//
// The relay is an untrusted middleman: message bodies are whatever the
// sending pipeline produced, ciphertext when a direct engine is active.
package main
