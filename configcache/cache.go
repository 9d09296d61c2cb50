// Package configcache implements the config cache (a periodically
// refreshed, fail-stale snapshot of the ruleset) and the default
// in-process config store (the rule-CRUD admin resource, §6A).
package configcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"

	"github.com/erfianugrah/do-rl-worker/metrics"
	"github.com/erfianugrah/do-rl-worker/ruleset"
)

const (
	logRefreshFailed = "config cache: refresh failed, keeping stale snapshot"
	logRefreshOK     = "config cache: snapshot refreshed"
)

// Fetcher loads the current ruleset from wherever it lives — the
// default in-process Backend, or an external rule-store collaborator
// reached over HTTP.
type Fetcher interface {
	Fetch(ctx context.Context) (ruleset.Ruleset, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context) (ruleset.Ruleset, error)

func (f FetcherFunc) Fetch(ctx context.Context) (ruleset.Ruleset, error) { return f(ctx) }

type snapshot struct {
	rules     ruleset.Ruleset
	fetchedAt time.Time
}

// Cache is a process-wide, read-mostly ruleset snapshot refreshed at
// most every TTL. Failures during refresh never invalidate the existing
// snapshot — grounded on the teacher's routesrv polling loop
// (routesrv/polling.go), generalized from an eskip byte blob to a
// ruleset.Ruleset value swapped behind an atomic pointer.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	metrics metrics.Metrics

	current atomic.Pointer[snapshot]

	quit chan struct{}
}

// NewCache returns a Cache with an empty snapshot; the first Get call
// performs the initial fetch.
func NewCache(fetcher Fetcher, ttl time.Duration, m metrics.Metrics) *Cache {
	c := &Cache{fetcher: fetcher, ttl: ttl, metrics: m, quit: make(chan struct{})}
	c.current.Store(&snapshot{})
	return c
}

// Get returns the current ruleset, refreshing first if the snapshot is
// older than TTL. A refresh failure is logged and the stale snapshot
// (possibly empty) is returned instead of propagating the error — the
// config cache is fail-stale per §4.6, and an empty ruleset is itself a
// valid answer: the pipeline treats it as "pass every request through".
func (c *Cache) Get(ctx context.Context) ruleset.Ruleset {
	snap := c.current.Load()
	if time.Since(snap.fetchedAt) < c.ttl && !snap.fetchedAt.IsZero() {
		return snap.rules
	}

	if err := c.refresh(ctx); err != nil {
		log.WithError(err).Warn(logRefreshFailed)
		if c.metrics != nil {
			c.metrics.IncConfigRefreshError()
		}
		return c.current.Load().rules
	}

	return c.current.Load().rules
}

// Invalidate forces the next Get call to refresh regardless of TTL.
func (c *Cache) Invalidate() {
	snap := c.current.Load()
	c.current.Store(&snapshot{rules: snap.rules})
}

func (c *Cache) refresh(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.MeasureConfigRefresh(start)
		}
	}()

	rules, err := backoff.Retry(ctx, func() (ruleset.Ruleset, error) {
		return c.fetcher.Fetch(ctx)
	}, backoff.WithMaxTries(3))
	if err != nil {
		return err
	}

	c.current.Store(&snapshot{rules: rules, fetchedAt: time.Now()})
	log.Debug(logRefreshOK)
	return nil
}

// Run starts a background refresh loop, decoupling refresh from the
// request hot path. It blocks until ctx is done or Close is called.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.refresh(ctx); err != nil {
				log.WithError(err).Warn(logRefreshFailed)
				if c.metrics != nil {
					c.metrics.IncConfigRefreshError()
				}
			}
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		}
	}
}

// Close stops a running background refresh loop.
func (c *Cache) Close() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}
