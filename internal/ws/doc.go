// Package ws provides the WebSocket plumbing on both sides of the bridge.
//
// The package implements:
//   - RemoteSocket: the remote worker connection, exposed to the relay as a
//     relay.RemoteConn with an independently tracked readiness state
//   - SessionTransport: an MCP client session, exposed to the relay as a
//     relay.Transport
//   - Handler: upgrades HTTP connections for both endpoints and runs the
//     read/write pumps that feed the relay, the traffic log, the trace tail
//     and the inspector
//
// The pumps follow the usual gorilla/websocket discipline: one writer
// goroutine per connection draining a buffered channel with write deadlines
// and periodic pings, one reader goroutine with read deadlines refreshed on
// pong.
package ws
