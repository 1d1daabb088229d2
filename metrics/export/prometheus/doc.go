// Package prometheus renders goSession engine metrics in Prometheus text format.
//
// [NewPrometheusExporter] wraps a [goSession.Engine] and serves an [http.Handler].
// Counters are named gosession_*_total and renewal latency is exported as
// gosession_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
