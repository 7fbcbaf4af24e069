// Package rate provides the Redis-backed fixed-window limiter used to throttle
// WebSocket handshakes per remote address.
//
// # Window semantics
//
// Fixed-window counters: INCR + EXPIRE on the first hit. Key prefix:
//   - hs: (after the configured prefix) per remote IP
//
// # What this package must NOT do
//
//   - Decide what happens on Redis failure; callers choose fail-open or fail-closed.
//   - Be imported outside the goRelay module.
package rate
