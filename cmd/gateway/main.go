// Command gateway runs the edge HTTP rate-limiting gateway: it loads
// the configured ruleset, proxies requests to the configured origin,
// and enforces each matched rule's sliding-window limit.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/erfianugrah/do-rl-worker/config"
	"github.com/erfianugrah/do-rl-worker/configcache"
	"github.com/erfianugrah/do-rl-worker/counter"
	"github.com/erfianugrah/do-rl-worker/dispatch"
	"github.com/erfianugrah/do-rl-worker/gateway"
	gwnet "github.com/erfianugrah/do-rl-worker/net"
	"github.com/erfianugrah/do-rl-worker/logging"
	"github.com/erfianugrah/do-rl-worker/metrics"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("gateway: exiting")
	}
}

func run() error {
	opts := config.NewOptions()
	if err := opts.Parse(); err != nil {
		return fmt.Errorf("parsing options: %w", err)
	}

	if opts.ApplicationLogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	logging.Init(logging.Options{
		ApplicationLogPrefix: "gateway: ",
		AccessLogJSONEnabled: opts.AccessLogFormat == "json",
	})
	if level, err := log.ParseLevel(opts.ApplicationLogLevel); err == nil {
		log.SetLevel(level)
	}

	origin, err := newOrigin(os.Getenv("ORIGIN_URL"))
	if err != nil {
		return fmt.Errorf("configuring origin: %w", err)
	}

	counterStore, err := newCounterStore(opts)
	if err != nil {
		return fmt.Errorf("configuring counter store: %w", err)
	}
	defer counterStore.Close()

	m := metrics.NewPrometheus(metrics.Options{EnableRuntimeMetrics: opts.EnableRuntimeMetrics})
	defer m.Close()

	bootstrap, err := opts.BootstrapRuleset()
	if err != nil {
		return fmt.Errorf("bootstrap rules: %w", err)
	}
	backend := configcache.NewMemoryBackend(bootstrap)
	cache := configcache.NewCache(backend, opts.ConfigCacheTTL, m)
	defer cache.Close()
	go cache.Run(context.Background())

	store := configcache.NewStoreHandler(backend, cache)

	pipeline := &gateway.Pipeline{
		Cache:           cache,
		Counter:         counterStore,
		Origin:          origin,
		Metrics:         m,
		Render:          dispatch.DefaultPageRenderer{},
		IgnorePath:      ignorePathMatcher(opts),
		ResponseHeaders: staticResponseHeaders(opts),
	}

	adminMux := gateway.NewAdminMux(pipeline, m, store, opts.RateLimitInfoPath)
	go func() {
		log.WithField("address", opts.MetricsAddress).Info("gateway: admin listener starting")
		if err := http.ListenAndServe(opts.MetricsAddress, adminMux); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("gateway: admin listener stopped")
		}
	}()

	srv := &gateway.Server{
		Addr:                 opts.Address,
		Handler:              pipeline,
		Forwarded:            gwnet.ForwardedHeaders{For: true, Host: true},
		HostPatch:            opts.HostPatch(),
		RefusePayload:        opts.RefusePayload,
		ValidateQuery:        opts.ValidateQuery,
		MaxRequestHeaderSize: opts.MaxRequestHeaderSize,
		ShutdownTimeout:      30 * time.Second,
	}

	log.WithField("address", opts.Address).Info("gateway: listener starting")
	return gateway.RunUntilSignal(srv)
}

func newOrigin(rawURL string) (*httputil.ReverseProxy, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("ORIGIN_URL must be set")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ORIGIN_URL: %w", err)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

func newCounterStore(opts *config.Options) (counter.Store, error) {
	switch opts.CounterBackend {
	case "redis":
		if len(opts.RedisAddrs) == 0 {
			return nil, fmt.Errorf("counter-backend=redis requires at least one -redis-addr")
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    opts.RedisAddrs,
			Password: opts.RedisPassword,
		})
		return counter.NewRedisStore(client), nil
	case "memory", "":
		return counter.NewMemoryStore(time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown counter-backend %q", opts.CounterBackend)
	}
}

func ignorePathMatcher(opts *config.Options) func(string) bool {
	if len(opts.IgnorePathPatterns) == 0 {
		return nil
	}
	return func(path string) bool {
		for _, re := range opts.IgnorePathPatterns {
			if re.MatchString(path) {
				return true
			}
		}
		return false
	}
}

func staticResponseHeaders(opts *config.Options) http.Header {
	values := opts.ResponseHeaders.Values()
	h := make(http.Header, len(values))
	for k, v := range values {
		h.Set(k, v)
	}
	return h
}
