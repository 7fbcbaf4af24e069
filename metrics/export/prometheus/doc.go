// Package prometheus exposes goRelay metrics through prometheus/client_golang.
//
// [Collector] implements prometheus.Collector over a snapshot source, so every
// scrape reads the lock-free goRelay counters once. [Handler] wraps a private
// registry with promhttp. Counter names are gorelay_*_total; the latency
// histogram is gorelay_broadcast_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry; callers decide.
//   - Mutate bridge state.
package prometheus
