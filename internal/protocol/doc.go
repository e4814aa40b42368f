// Package protocol defines the session transport contract between a bot and
// the game server: typed inbound events, typed outbound commands, and a
// websocket implementation that frames both as JSON messages.
//
// # Contract
//
// A Transport opens sessions:
//
//	sess, err := transport.Dial(endpoint, identity, handler)
//
// An empty endpoint falls back to the transport's configured default address.
//
// The handler receives the closed set of Event variants (login, position,
// respawn, health, chat, connected, disconnecting, disconnected,
// packet-error) on the session's read-loop goroutine. Outbound traffic goes
// through Session.Send with one or more Command values.
//
// Sessions are single-use: after a disconnect the session is discarded and a
// new one is dialed.
package protocol
