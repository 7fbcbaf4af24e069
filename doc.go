// Package goRelay bridges a Redis pub/sub bus to authenticated WebSocket
// sessions. Producers publish JSON envelopes carrying a permission set; the
// bridge delivers each envelope's data to every connected session that has
// subscribed to the channel and whose credential satisfies the permissions.
//
// Bridge methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goRelay is the public surface. It exposes [Bridge], [Builder], [Config] and
// value types (MetricsSnapshot, Event, LintWarnings). The session registry,
// control protocol, bus subscriber, credential verifier and permission
// matcher live in their own packages; rate limiting and event dispatch live
// under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Mutate a session's credential or channels from any goroutine other than
//     through the registry.
//   - Block the bus dispatch goroutine on a slow client (sends are queued and
//     dropped when a session's queue is full).
//   - Import any sub-package that re-imports goRelay (no import cycles).
//
// # Delivery contract
//
// Broadcast is the hot path. A message reaches a session only when the
// session is open, its credential is still fresh, it subscribed to the
// channel and the permission set matches. Stale and closed sessions found
// during a broadcast are evicted before anything is written to them.
package goRelay
