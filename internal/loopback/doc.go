// Package loopback is an in-memory chat network: rooms, their members and
// point-to-point messaging between accounts, all delivered synchronously on
// the caller's goroutine.
//
// A Hub connects Accounts. Each Account implements domain.MultiUserChat and
// domain.DirectTransport; each joined Room implements domain.ChatRoom. Room
// broadcasts reach the sender as a delivered event and every other member as
// a received event, mirroring a room server that echoes to everyone.
package loopback
