// Package session is the connection registry: the authoritative in-memory table
// of admitted WebSocket sessions, their current credential, their channel
// subscriptions and their outbound write path.
//
// # Components
//
//   - [Registry] — id-keyed table guarded by one RWMutex; the only shared
//     mutable structure of the bridge.
//   - [Session] — per-connection state plus a bounded FIFO send queue drained
//     by a single writer goroutine, which also owns the keepalive ticker.
//
// # Architecture boundaries
//
// This package decides nothing about access control or freshness. It stores
// the token the protocol handler hands it and exposes a consistent
// (token, subscribed) view for the broadcast engine.
//
// # What this package must NOT do
//
//   - Import goRelay, bus, protocol, or permission.
//   - Block callers of [Session.Send]; saturation is reported as [ErrQueueFull].
//   - Tear a session down more than once.
package session
