// Package internaldefs exposes stable metric names and bucket definitions shared by
// exporter implementations.
//
// Both the Prometheus and OTel exporters read from here so that metric names and
// bucket boundaries stay identical. Changes to definitions in this package affect
// all exporters simultaneously.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
