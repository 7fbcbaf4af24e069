// Package otel provides OpenTelemetry metric exporter bindings for goRelay counters and
// histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each goRelay
// counter, an Int64ObservableGauge per histogram bucket and one for active sessions.
// A single callback reads the source snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate bridge state.
package otel
