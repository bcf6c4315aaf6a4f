// Package prometheus exposes goSala client metrics through
// prometheus/client_golang.
//
// [PrometheusExporter] implements [prometheus.Collector]. Counter names are
// prefixed sala_client_*_total; the single histogram is
// sala_client_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register the
//     collector themselves or mount Handler.
//   - Mutate client state.
package prometheus
