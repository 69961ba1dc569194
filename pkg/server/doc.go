// Package server exposes a model over WebSocket and one-shot HTTP.
//
// Both transports share one mount path. A WebSocket upgrade request opens a
// persistent connection; a POST runs a single message and returns its
// responses. Any other request gets 405.
//
// # Connection Lifecycle
//
// Each WebSocket connection owns:
//   - a session value, installed at /session while its messages run
//   - a subscription manager and patch batcher
//   - a dispatcher with SUB and UNSUB enabled
//
// The connection runs two goroutines:
//   - Serve (the handler goroutine): synthesizes onConnect, then reads
//     messages and dispatches each inside a model turn
//   - writeLoop: drains the outbound queue in order and sends heartbeat pings
//
// On close every subscription is dropped and onDisconnect runs with the
// connection's session.
//
// # Ordering
//
// Responses of a message are queued during its turn; patches produced by the
// same turn are flushed after it. A response therefore always reaches the
// client before the PUB carrying the changes its call made.
//
// # Example Usage
//
//	m := model.New(root, methods)
//	srv := server.New(m, server.DefaultServerConfig().WithAddress(":8080"))
//	srv.Run()
package server
