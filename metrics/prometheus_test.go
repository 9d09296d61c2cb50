package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erfianugrah/do-rl-worker/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	tests := []struct {
		name       string
		addMetrics func(*metrics.Prometheus)
		expMetrics []string
	}{
		{
			name: "counting requests by verdict and rule",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncRequest("block", "rule-1")
				pm.IncRequest("block", "rule-1")
				pm.IncRequest("allow", "")
			},
			expMetrics: []string{
				`rlgw_pipeline_requests_total{rule="rule-1",verdict="block"} 2`,
				`rlgw_pipeline_requests_total{rule="none",verdict="allow"} 1`,
			},
		},
		{
			name: "counting counter store errors by backend",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncCounterStoreError("redis")
				pm.IncCounterStoreError("redis")
				pm.IncCounterStoreError("memory")
			},
			expMetrics: []string{
				`rlgw_counter_errors_total{backend="redis"} 2`,
				`rlgw_counter_errors_total{backend="memory"} 1`,
			},
		},
		{
			name: "counting config refresh errors",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncConfigRefreshError()
				pm.IncConfigRefreshError()
			},
			expMetrics: []string{
				`rlgw_config_refresh_errors_total 2`,
			},
		},
		{
			name: "setting an arbitrary gauge",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.UpdateGauge("ruleset.size", 12)
			},
			expMetrics: []string{
				`rlgw_gauges{key="ruleset.size"} 12`,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pm := metrics.NewPrometheus(metrics.Options{})
			tc.addMetrics(pm)

			mux := http.NewServeMux()
			pm.RegisterHandler("/metrics", mux)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}

			body, err := io.ReadAll(rr.Body)
			if err != nil {
				t.Fatalf("failed to read response body: %v", err)
			}

			for _, exp := range tc.expMetrics {
				if !strings.Contains(string(body), exp) {
					t.Errorf("expected metrics output to contain %q, got:\n%s", exp, body)
				}
			}
		})
	}
}

func TestPrometheusHistograms(t *testing.T) {
	pm := metrics.NewPrometheus(metrics.Options{})

	pm.MeasureFingerprint(time.Now().Add(-10 * time.Millisecond))
	pm.MeasureMatch(time.Now().Add(-5 * time.Millisecond))
	pm.MeasureCounterStore("redis", time.Now().Add(-2*time.Millisecond))
	pm.MeasureOrigin(time.Now().Add(-20 * time.Millisecond))
	pm.MeasurePipeline("allow", time.Now().Add(-30*time.Millisecond))
	pm.MeasureConfigRefresh(time.Now().Add(-1 * time.Second))

	mux := http.NewServeMux()
	pm.RegisterHandler("/metrics", mux)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	for _, name := range []string{
		"rlgw_fingerprint_duration_seconds",
		"rlgw_match_duration_seconds",
		`rlgw_counter_duration_seconds_count{backend="redis"}`,
		"rlgw_origin_duration_seconds",
		`rlgw_pipeline_duration_seconds_count{verdict="allow"}`,
		"rlgw_config_refresh_duration_seconds",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected metrics output to contain %q, got:\n%s", name, body)
		}
	}
}

func TestPrometheusRuntimeMetricsOptIn(t *testing.T) {
	pm := metrics.NewPrometheus(metrics.Options{EnableRuntimeMetrics: true})

	mux := http.NewServeMux()
	pm.RegisterHandler("/metrics", mux)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	if !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("expected runtime collector output, got:\n%s", body)
	}
}
