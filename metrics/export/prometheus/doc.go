// Package prometheus renders engine counters in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts an [auth.Engine] and exposes an
// [http.Handler] suitable for mounting at /metrics. Counter names are
// prefixed memauth_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
