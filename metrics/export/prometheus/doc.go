// Package prometheus exposes engine counters through client_golang.
//
// [Exporter] is a pull collector: every scrape reads
// [shopauth.Engine.MetricsSnapshot] and emits const metrics, so the engine
// keeps its lock-free counters and never touches a registry. Counter names are
// prefixed shopauth_ and suffixed _total; the one histogram is
// shopauth_signin_latency_seconds.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry. Callers build their own
//     with [NewRegistry].
//   - Mutate engine state.
package prometheus
