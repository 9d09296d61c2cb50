/*
Package metrics implements collection of performance and health metrics
for the gateway pipeline.

It uses the Prometheus client library:

https://github.com/prometheus/client_golang

The Metrics interface has a latency histogram per stage (fingerprint,
match, counter store, origin forwarding, config refresh) and for the
whole pipeline run, and error counters for the counter store, origin
forwarding and config refresh, so that a single slow or failing stage
can be isolated from a dashboard without enabling request tracing. The
gateway pipeline reports the fingerprint, match, counter store and
whole-run measurements and the config cache reports config refreshes;
nothing calls the origin measurements.

Options

To expose metrics, mount the handler returned by CreateHandler on the
admin listener. Counting is always enabled; the only optional pieces are
the Go runtime collectors and the process collector, gated by
EnableRuntimeMetrics.
*/
package metrics
