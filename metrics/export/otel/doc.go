// Package otel provides OpenTelemetry metric exporter bindings for goSala client
// counters and histograms.
//
// [NewOTelExporter] registers an Int64ObservableCounter per client counter, one
// Int64ObservableGauge per histogram whose data points carry an "le" attribute,
// and gauges for the refresh coordinator (queued callers, cycle in progress).
// A single callback reads [goSala.Client.MetricsSnapshot] and
// [goSala.Client.RefreshState] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
