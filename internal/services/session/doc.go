// Package session hosts the multi-party session of one chat room.
//
// A Host bridges room membership onto the engine's users, keeps the
// deduplication sets that stop a broadcast from being processed twice, and
// re-publishes engine callbacks as typed events (state changes, SMP events,
// notices). One Host exists per joined room; see package registry.
package session
