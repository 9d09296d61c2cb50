package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace        = "rlgw"
	promPipelineSubstm   = "pipeline"
	promFingerprintSubst = "fingerprint"
	promMatchSubsystem   = "match"
	promCounterSubsystem = "counter"
	promOriginSubsystem  = "origin"
	promConfigSubsystem  = "config"
)

// Prometheus implements Metrics on top of client_golang.
type Prometheus struct {
	fingerprintM        *prometheus.HistogramVec
	matchM              *prometheus.HistogramVec
	counterM            *prometheus.HistogramVec
	counterErrorsM      *prometheus.CounterVec
	originM             *prometheus.HistogramVec
	originErrorsM       *prometheus.CounterVec
	requestsM           *prometheus.CounterVec
	pipelineM           *prometheus.HistogramVec
	configRefreshM      *prometheus.HistogramVec
	configRefreshErrorM prometheus.Counter
	gaugesM             *prometheus.GaugeVec

	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metrics backend registered on
// its own registry.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	p := &Prometheus{
		fingerprintM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promFingerprintSubst,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of computing a request fingerprint.",
			Buckets:   buckets,
		}, nil),
		matchM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promMatchSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of evaluating conditions and matching rules.",
			Buckets:   buckets,
		}, nil),
		counterM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promCounterSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of a counter store operation.",
			Buckets:   buckets,
		}, []string{"backend"}),
		counterErrorsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promCounterSubsystem,
			Name:      "errors_total",
			Help:      "Total number of failed counter store operations.",
		}, []string{"backend"}),
		originM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promOriginSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds waiting for the origin response.",
			Buckets:   buckets,
		}, nil),
		originErrorsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promOriginSubsystem,
			Name:      "errors_total",
			Help:      "Total number of failed origin requests.",
		}, nil),
		requestsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promPipelineSubstm,
			Name:      "requests_total",
			Help:      "Total number of pipeline runs by verdict and matched rule.",
		}, []string{"verdict", "rule"}),
		pipelineM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promPipelineSubstm,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of one pipeline run.",
			Buckets:   buckets,
		}, []string{"verdict"}),
		configRefreshM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promConfigSubsystem,
			Name:      "refresh_duration_seconds",
			Help:      "Duration in seconds of refreshing the rule snapshot.",
			Buckets:   buckets,
		}, nil),
		configRefreshErrorM: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promConfigSubsystem,
			Name:      "refresh_errors_total",
			Help:      "Total number of failed rule snapshot refreshes.",
		}),
		gaugesM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gauges",
			Help:      "Arbitrary named gauges, see the key label.",
		}, []string{"key"}),

		registry: prometheus.NewRegistry(),
	}

	p.registry.MustRegister(
		p.fingerprintM,
		p.matchM,
		p.counterM,
		p.counterErrorsM,
		p.originM,
		p.originErrorsM,
		p.requestsM,
		p.pipelineM,
		p.configRefreshM,
		p.configRefreshErrorM,
		p.gaugesM,
	)

	if opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}

	return p
}

func sinceS(start time.Time) float64 {
	return time.Since(start).Seconds()
}

func (p *Prometheus) MeasureFingerprint(start time.Time) {
	p.fingerprintM.WithLabelValues().Observe(sinceS(start))
}

func (p *Prometheus) MeasureMatch(start time.Time) {
	p.matchM.WithLabelValues().Observe(sinceS(start))
}

func (p *Prometheus) MeasureCounterStore(backend string, start time.Time) {
	p.counterM.WithLabelValues(backend).Observe(sinceS(start))
}

func (p *Prometheus) IncCounterStoreError(backend string) {
	p.counterErrorsM.WithLabelValues(backend).Inc()
}

func (p *Prometheus) MeasureOrigin(start time.Time) {
	p.originM.WithLabelValues().Observe(sinceS(start))
}

func (p *Prometheus) IncOriginError() {
	p.originErrorsM.WithLabelValues().Inc()
}

func (p *Prometheus) IncRequest(verdict, ruleID string) {
	if ruleID == "" {
		ruleID = "none"
	}
	p.requestsM.WithLabelValues(verdict, ruleID).Inc()
}

func (p *Prometheus) MeasurePipeline(verdict string, start time.Time) {
	p.pipelineM.WithLabelValues(verdict).Observe(sinceS(start))
}

func (p *Prometheus) MeasureConfigRefresh(start time.Time) {
	p.configRefreshM.WithLabelValues().Observe(sinceS(start))
}

func (p *Prometheus) IncConfigRefreshError() {
	p.configRefreshErrorM.Inc()
}

func (p *Prometheus) UpdateGauge(key string, v float64) {
	p.gaugesM.WithLabelValues(key).Set(v)
}

func (p *Prometheus) CreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	if p.handler == nil {
		p.handler = p.CreateHandler()
	}
	mux.Handle(path, p.handler)
}

func (p *Prometheus) Close() {}
