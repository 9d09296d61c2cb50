package gateway

import (
	"net/http"

	"github.com/erfianugrah/do-rl-worker/configcache"
	"github.com/erfianugrah/do-rl-worker/metrics"
)

// NewAdminMux builds the process's own admin surface: liveness, the
// metrics exposition endpoint, the introspection endpoint, and — when
// store is non-nil — the default config store's rule-CRUD API (§6A).
// store is nil when the operator pointed CONFIG_STORAGE at an external
// resolver instead, in which case this process mounts no write surface
// for it.
func NewAdminMux(p *Pipeline, m metrics.Metrics, store *configcache.StoreHandler, infoPath string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if m != nil {
		m.RegisterHandler("/metrics", mux)
	}

	if infoPath != "" {
		mux.HandleFunc("GET "+infoPath, p.Introspect)
	}

	if store != nil {
		store.Register(mux)
	}

	return mux
}
