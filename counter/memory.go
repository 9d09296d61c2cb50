package counter

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// stripeCount is the number of mutex-guarded shards the in-process store
// is split into. Requests for different keys that happen to land on
// different shards proceed without contending on the same lock.
const stripeCount = 64

type window struct {
	timestamps []int64 // ms since epoch, oldest first
	lastAccess int64    // ms since epoch, updated on every Check
}

type stripe struct {
	mu      sync.Mutex
	windows map[Key]*window
}

// MemoryStore is a striped-lock, in-process implementation of Store. It
// is grounded on the teacher's circuit.Registry, a mutex-guarded map
// keyed by settings, generalized here into a fixed table of stripes
// selected by hash(key) mod stripeCount so that unrelated keys don't
// serialize on the same lock.
type MemoryStore struct {
	stripes [stripeCount]*stripe

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// idleTTL is how long a window may sit with no Check call before the
// sweep goroutine reclaims it, independent of any rule's period (the
// stripe has no per-key period once a window exists).
const idleTTL = 10 * time.Minute

// NewMemoryStore returns a ready in-process counter store and starts a
// background sweep goroutine that evicts idle windows every interval.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	m := &MemoryStore{sweepStop: make(chan struct{})}
	for i := range m.stripes {
		m.stripes[i] = &stripe{windows: make(map[Key]*window)}
	}
	if sweepInterval > 0 {
		go m.sweepLoop(sweepInterval)
	}
	return m
}

func (m *MemoryStore) shard(key Key) *stripe {
	h := xxhash.Sum64String(string(key))
	return m.stripes[h%stripeCount]
}

// Check implements Store.
func (m *MemoryStore) Check(_ context.Context, key Key, limit, periodSeconds int, now time.Time) (Decision, error) {
	s := m.shard(key)
	nowMS := now.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}

	w.timestamps = evict(w.timestamps, nowMS, periodSeconds)
	w.lastAccess = nowMS

	allowed := len(w.timestamps) < limit
	if allowed {
		w.timestamps = append(w.timestamps, nowMS)
	}
	if len(w.timestamps) > limit {
		w.timestamps = w.timestamps[len(w.timestamps)-limit:]
	}

	return decisionFromWindow(w.timestamps, limit, periodSeconds, nowMS, allowed), nil
}

func evict(timestamps []int64, nowMS int64, periodSeconds int) []int64 {
	start := windowStart(time.UnixMilli(nowMS), periodSeconds)
	i := 0
	for i < len(timestamps) && timestamps[i] <= start {
		i++
	}
	return timestamps[i:]
}

func decisionFromWindow(timestamps []int64, limit, periodSeconds int, nowMS int64, allowed bool) Decision {
	remaining := limit - len(timestamps)
	if remaining < 0 {
		remaining = 0
	}

	resetTime := nowMS + 1000
	if len(timestamps) > 0 {
		candidate := timestamps[0] + int64(periodSeconds)*1000
		if candidate > resetTime {
			resetTime = candidate
		}
	}

	retryAfter := int64(0)
	if !allowed {
		retryAfter = (resetTime - nowMS) / 1000
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	return Decision{
		Allowed:     allowed,
		Limit:       limit,
		Remaining:   remaining,
		Period:      periodSeconds,
		ResetTime:   resetTime / 1000,
		ResetTimeMS: resetTime,
		RetryAfter:  retryAfter,
	}
}

func (m *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now())
		case <-m.sweepStop:
			return
		}
	}
}

// sweep drops windows that have not been touched by a Check call within
// idleTTL, so long-dead keys don't accumulate in the stripe maps forever.
func (m *MemoryStore) sweep(now time.Time) {
	cutoff := now.Add(-idleTTL).UnixMilli()
	for _, s := range m.stripes {
		s.mu.Lock()
		for key, w := range s.windows {
			if w.lastAccess < cutoff {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}

// Close stops the background sweep goroutine.
func (m *MemoryStore) Close() error {
	m.sweepOnce.Do(func() { close(m.sweepStop) })
	return nil
}
