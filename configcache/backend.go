package configcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/erfianugrah/do-rl-worker/ruleset"
)

// Backend is the pluggable storage interface behind the default config
// store, separating the wire handler (StoreHandler) from where the
// document actually lives — grounded on the teacher's separation
// between a DataClient and the wire-protocol handler wrapping it.
type Backend interface {
	Load(ctx context.Context) (ruleset.Ruleset, error)
	Save(ctx context.Context, rs ruleset.Ruleset) error
}

// MemoryBackend is a single mutex-guarded Ruleset value, the default
// Backend so the gateway is configurable without a second service.
type MemoryBackend struct {
	mu  sync.RWMutex
	rs  ruleset.Ruleset
	set bool
}

// NewMemoryBackend returns a backend seeded with an initial ruleset
// (e.g. parsed from a YAML bootstrap file). An empty Ruleset{} is a
// valid seed: every request passes through until rules are added.
func NewMemoryBackend(initial ruleset.Ruleset) *MemoryBackend {
	return &MemoryBackend{rs: initial, set: true}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context) (ruleset.Ruleset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.set {
		return ruleset.Ruleset{}, fmt.Errorf("configcache: no ruleset stored")
	}
	return b.rs.Clone(), nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, rs ruleset.Ruleset) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rs = rs.Clone()
	b.set = true
	return nil
}

// Fetcher adapts a Backend to the Cache's Fetcher interface.
func (b *MemoryBackend) Fetch(ctx context.Context) (ruleset.Ruleset, error) {
	return b.Load(ctx)
}
