// Package gateway wires the fingerprinter, condition evaluator, rule
// matcher, counter store and action dispatcher into one http.Handler:
// the request pipeline described by the component design's state
// machine (Received → ConfigLoaded → Matched? → ... → Emit).
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/erfianugrah/do-rl-worker/configcache"
	"github.com/erfianugrah/do-rl-worker/counter"
	"github.com/erfianugrah/do-rl-worker/dispatch"
	"github.com/erfianugrah/do-rl-worker/fingerprint"
	"github.com/erfianugrah/do-rl-worker/logging"
	"github.com/erfianugrah/do-rl-worker/match"
	"github.com/erfianugrah/do-rl-worker/metrics"
	"github.com/erfianugrah/do-rl-worker/ruleset"
)

// EdgeExtractor builds the per-connection edge metadata (the `cf`
// namespace: TLS version, ASN, bot score, country, ...) for one
// request. The core design treats this as host-supplied; a host not
// running behind such a front proxy can pass a func that always
// returns nil.
type EdgeExtractor func(*http.Request) fingerprint.Edge

// Pipeline is the request handler described by §4.7: it loads the
// config snapshot, matches the request against the ruleset, computes a
// fingerprint when a rule matched, queries the counter store, dispatches
// the verdict into a response, and forwards to origin when instructed.
type Pipeline struct {
	Cache   *configcache.Cache
	Counter counter.Store
	Origin  *httputil.ReverseProxy
	Metrics metrics.Metrics
	Edge    EdgeExtractor
	Render  dispatch.PageRenderer

	// IgnorePath reports whether a request path bypasses the pipeline
	// entirely (health checks, static assets the operator never wants
	// rate-limited).
	IgnorePath func(path string) bool

	// ResponseHeaders are static headers merged onto every synthesized
	// (non-forwarded) response, after the per-decision X-Rate-Limit-*
	// set.
	ResponseHeaders http.Header
}

// ServeHTTP implements http.Handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	r.Header.Set("X-Request-Id", requestID)

	if p.IgnorePath != nil && p.IgnorePath(r.URL.Path) {
		p.forward(w, r)
		return
	}

	verdict := "no_match"
	ruleName := ""
	action := ""

	defer func() {
		if p.Metrics != nil {
			p.Metrics.MeasurePipeline(verdict, start)
		}
	}()

	rs := p.loadConfig(r.Context())
	if len(rs.Rules) == 0 {
		p.forward(w, r)
		return
	}

	body := bufferRequestBody(r, fingerprint.MaxBodyBytes)
	edge := p.edgeFor(r)

	matchStart := time.Now()
	result := match.Match(rs, match.Context{HTTP: r, Body: body, Edge: edge})
	if p.Metrics != nil {
		p.Metrics.MeasureMatch(matchStart)
	}

	if !result.Matched {
		p.forward(w, r)
		return
	}
	ruleName = result.Rule.Name
	action = string(result.Action.Type)

	key, identifier := p.counterKey(result.Rule, fingerprint.Request{HTTP: r, Body: body, Edge: edge})

	decision, err := p.checkCounter(r.Context(), key, result.Rule.RateLimit)
	if err != nil {
		log.WithError(err).WithField("rule", ruleName).Warn("gateway: counter store failure, forwarding unchanged")
		if p.Metrics != nil {
			p.Metrics.IncCounterStoreError(p.counterBackendLabel())
		}
		p.forward(w, r)
		return
	}

	if decision.Allowed {
		verdict = "allowed"
	} else {
		verdict = "denied"
	}
	if p.Metrics != nil {
		p.Metrics.IncRequest(verdict, ruleName)
	}

	outcome := dispatch.Dispatch(result.Rule, result.Action, decision, identifier, acceptsHTML(r), p.Render)
	p.emit(w, r, outcome, start, ruleName, action)
}

func (p *Pipeline) loadConfig(ctx context.Context) ruleset.Ruleset {
	if p.Cache == nil {
		return ruleset.Ruleset{}
	}
	return p.Cache.Get(ctx)
}

func (p *Pipeline) edgeFor(r *http.Request) fingerprint.Edge {
	if p.Edge == nil {
		return nil
	}
	return p.Edge(r)
}

func (p *Pipeline) counterKey(rule ruleset.Rule, fr fingerprint.Request) (counter.Key, string) {
	if rule.Fingerprint == nil || len(rule.Fingerprint.Parameters) == 0 {
		return counter.RuleDefaultKey(rule.Name), "default"
	}
	if len(rule.Fingerprint.Parameters) == 1 && rule.Fingerprint.Parameters[0] == "clientIP" {
		ip := fingerprint.ClientIP(fr.HTTP, fr.Edge)
		return counter.RuleIPKey(rule.Name, ip), ip
	}

	fpStart := time.Now()
	hash := fingerprint.Compute(fr, rule.Fingerprint.Parameters)
	if p.Metrics != nil {
		p.Metrics.MeasureFingerprint(fpStart)
	}
	return counter.RuleKey(rule.Name, hash), hash
}

func (p *Pipeline) checkCounter(ctx context.Context, key counter.Key, rl ruleset.RateLimit) (counter.Decision, error) {
	if p.Counter == nil {
		return counter.Decision{}, fmt.Errorf("gateway: no counter store configured")
	}
	start := time.Now()
	backend := p.counterBackendLabel()
	decision, err := p.Counter.Check(ctx, key, rl.Limit, rl.Period, time.Now())
	if p.Metrics != nil {
		p.Metrics.MeasureCounterStore(backend, start)
	}
	return decision, err
}

func (p *Pipeline) counterBackendLabel() string {
	switch p.Counter.(type) {
	case *counter.RedisStore:
		return "redis"
	case *counter.MemoryStore:
		return "memory"
	default:
		return "unknown"
	}
}

func (p *Pipeline) forward(w http.ResponseWriter, r *http.Request) {
	if p.Origin == nil {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	p.Origin.ServeHTTP(w, r)
}

// emit applies the dispatcher's outcome: it forwards to origin (letting
// the reverse proxy write the response), or writes the synthesized
// response directly, merging headers either way, then logs the access
// entry.
func (p *Pipeline) emit(w http.ResponseWriter, r *http.Request, outcome dispatch.Outcome, start time.Time, rule, action string) {
	statusCode := http.StatusOK

	if outcome.Forward {
		rw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		mergeHeaders(rw.Header(), outcome.Headers)
		p.forward(rw, r)
		statusCode = rw.status
	} else {
		mergeHeaders(w.Header(), outcome.Headers)
		mergeHeaders(w.Header(), p.ResponseHeaders)
		if outcome.ContentType != "" {
			w.Header().Set("Content-Type", outcome.ContentType)
		}
		statusCode = outcome.StatusCode
		w.WriteHeader(statusCode)
		_, _ = w.Write(outcome.Body)
	}

	logging.LogAccess(&logging.AccessEntry{
		Request:     r,
		StatusCode:  statusCode,
		Duration:    time.Since(start),
		RequestTime: start,
		RuleID:      rule,
		Action:      action,
	})
}

func mergeHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Set(k, v)
		}
	}
}

func acceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// statusCapturingWriter records the status code a downstream handler
// (the reverse proxy) writes, so the access log entry reflects origin's
// actual response status rather than always "200".
type statusCapturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.status = http.StatusOK
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
