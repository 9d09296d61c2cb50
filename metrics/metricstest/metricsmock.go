// Package metricstest provides an in-memory metrics.Metrics implementation
// for use in tests that want to assert on counters, gauges or measured
// durations without standing up a Prometheus registry.
package metricstest

import (
	"net/http"
	"sync"
	"time"
)

// MockMetrics records every call thread-safely in plain maps.
type MockMetrics struct {
	Prefix string

	mu sync.Mutex

	counters map[string]int64
	gauges   map[string]float64
	measures map[string][]time.Duration

	// Now, when set, is used instead of time.Now() so tests can control
	// measured durations deterministically.
	Now time.Time
}

func (m *MockMetrics) withCounters(f func(map[string]int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	f(m.counters)
}

func (m *MockMetrics) withGauges(f func(map[string]float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges == nil {
		m.gauges = make(map[string]float64)
	}
	f(m.gauges)
}

func (m *MockMetrics) withMeasures(f func(map[string][]time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.measures == nil {
		m.measures = make(map[string][]time.Duration)
	}
	f(m.measures)
}

func (m *MockMetrics) now() time.Time {
	if m.Now.IsZero() {
		return time.Now()
	}
	return m.Now
}

func (m *MockMetrics) measure(key string, start time.Time) {
	d := m.now().Sub(start)
	m.withMeasures(func(measures map[string][]time.Duration) {
		measures[m.Prefix+key] = append(measures[m.Prefix+key], d)
	})
}

func (m *MockMetrics) MeasureFingerprint(start time.Time) { m.measure("fingerprint", start) }
func (m *MockMetrics) MeasureMatch(start time.Time)       { m.measure("match", start) }

func (m *MockMetrics) MeasureCounterStore(backend string, start time.Time) {
	m.measure("counter."+backend, start)
}

func (m *MockMetrics) IncCounterStoreError(backend string) {
	m.withCounters(func(c map[string]int64) { c[m.Prefix+"counter.errors."+backend]++ })
}

func (m *MockMetrics) MeasureOrigin(start time.Time) { m.measure("origin", start) }

func (m *MockMetrics) IncOriginError() {
	m.withCounters(func(c map[string]int64) { c[m.Prefix+"origin.errors"]++ })
}

func (m *MockMetrics) IncRequest(verdict, ruleID string) {
	if ruleID == "" {
		ruleID = "none"
	}
	m.withCounters(func(c map[string]int64) { c[m.Prefix+"requests."+verdict+"."+ruleID]++ })
}

func (m *MockMetrics) MeasurePipeline(verdict string, start time.Time) {
	m.measure("pipeline."+verdict, start)
}

func (m *MockMetrics) MeasureConfigRefresh(start time.Time) { m.measure("config.refresh", start) }

func (m *MockMetrics) IncConfigRefreshError() {
	m.withCounters(func(c map[string]int64) { c[m.Prefix+"config.refresh.errors"]++ })
}

func (m *MockMetrics) UpdateGauge(key string, v float64) {
	m.withGauges(func(g map[string]float64) { g[m.Prefix+key] = v })
}

func (m *MockMetrics) RegisterHandler(path string, mux *http.ServeMux) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (m *MockMetrics) Close() {}

// Counter returns the current value of a counter recorded under key.
func (m *MockMetrics) Counter(key string) (v int64, ok bool) {
	m.withCounters(func(c map[string]int64) { v, ok = c[m.Prefix+key] })
	return
}

// Gauge returns the current value of a gauge recorded under key.
func (m *MockMetrics) Gauge(key string) (v float64, ok bool) {
	m.withGauges(func(g map[string]float64) { v, ok = g[m.Prefix+key] })
	return
}

// Measurements returns every duration recorded under key, in call order.
func (m *MockMetrics) Measurements(key string) (d []time.Duration, ok bool) {
	m.withMeasures(func(measures map[string][]time.Duration) { d, ok = measures[m.Prefix+key] })
	return
}
