package metrics

import (
	"net/http"
	"time"
)

// Options configures a metrics backend.
type Options struct {
	// Prefix overrides the default "rlgw" namespace.
	Prefix string

	// HistogramBuckets sets the bucket boundaries used by every
	// latency histogram. When empty, prometheus.DefBuckets is used.
	HistogramBuckets []float64

	// EnableRuntimeMetrics registers the Go runtime and process
	// collectors on the same registry.
	EnableRuntimeMetrics bool
}

// Metrics is implemented by every metrics backend. The gateway depends
// on this interface, never on a concrete backend, so tests can swap in
// metricstest.MockMetrics.
type Metrics interface {
	// MeasureFingerprint records the time spent computing a request
	// fingerprint.
	MeasureFingerprint(start time.Time)

	// MeasureMatch records the time spent evaluating conditions and
	// matching rules against one request.
	MeasureMatch(start time.Time)

	// MeasureCounterStore records the time spent in one counter store
	// operation, split by backend name ("memory" or "redis").
	MeasureCounterStore(backend string, start time.Time)

	// IncCounterStoreError counts a failed counter store operation.
	IncCounterStoreError(backend string)

	// MeasureOrigin records the time spent waiting for the origin
	// response once a request was allowed through.
	MeasureOrigin(start time.Time)

	// IncOriginError counts a failed attempt to reach the origin.
	IncOriginError()

	// IncRequest counts one finished pipeline run, labeled by the
	// verdict (the gateway pipeline passes "allowed" or "denied") and
	// the rule that produced it, or "none" when ruleID is empty.
	IncRequest(verdict, ruleID string)

	// MeasurePipeline records the total wall-clock time of one
	// pipeline run, labeled by verdict (the gateway pipeline passes
	// "no_match", "allowed" or "denied").
	MeasurePipeline(verdict string, start time.Time)

	// MeasureConfigRefresh records the time spent refreshing the rule
	// snapshot from the config store.
	MeasureConfigRefresh(start time.Time)

	// IncConfigRefreshError counts a failed config refresh.
	IncConfigRefreshError()

	// UpdateGauge sets an arbitrary named gauge, identified by key.
	UpdateGauge(key string, v float64)

	// RegisterHandler mounts the metrics exposition endpoint on mux.
	RegisterHandler(path string, mux *http.ServeMux)

	Close()
}
