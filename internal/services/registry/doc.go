// Package registry tracks one session host per joined chat room.
//
// Hosts are created when the local user joins a room and closed when the
// user leaves, is kicked or loses the connection. The registry also resolves
// the host that owns a multi-party session id, which the transform layer uses
// to route direct protocol traffic.
package registry
