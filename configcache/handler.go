package configcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"

	"github.com/erfianugrah/do-rl-worker/ruleset"
)

// StoreHandler implements the default config store's HTTP API (§6A):
// GET/POST /config, GET/POST/PUT/DELETE /rules/{id}, PUT
// /config/reorder. It is mounted only when the process is configured to
// use the default, in-process CONFIG_STORAGE resolver; an external rule
// store collaborator simply isn't mounted here.
type StoreHandler struct {
	backend Backend
	cache   *Cache
}

// NewStoreHandler returns a handler backed by backend. When cache is
// non-nil, every successful write calls Invalidate so the next request
// sees the change without waiting for CONFIG_CACHE_TTL to elapse.
func NewStoreHandler(backend Backend, cache *Cache) *StoreHandler {
	return &StoreHandler{backend: backend, cache: cache}
}

// Register mounts the store's routes on mux.
func (h *StoreHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /config", h.getConfig)
	mux.HandleFunc("POST /config", h.postConfig)
	mux.HandleFunc("PUT /config/reorder", h.reorder)
	mux.HandleFunc("GET /rules/{id}", h.getRule)
	mux.HandleFunc("POST /rules", h.postRule)
	mux.HandleFunc("PUT /rules/{id}", h.putRule)
	mux.HandleFunc("DELETE /rules/{id}", h.deleteRule)
}

func (h *StoreHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	rs, err := h.backend.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config", err)
		return
	}
	writeJSONGzip(w, r, http.StatusOK, rs)
}

func (h *StoreHandler) postConfig(w http.ResponseWriter, r *http.Request) {
	rs, err := decodeRuleset(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed ruleset", err)
		return
	}
	if err := h.save(r, rs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config", err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *StoreHandler) reorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rules []string `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed reorder request", err)
		return
	}

	rs, err := h.backend.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config", err)
		return
	}

	reordered, err := reorderRules(rs, body.Rules)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reorder list", err)
		return
	}

	if err := h.save(r, reordered); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config", err)
		return
	}
	writeJSON(w, http.StatusOK, reordered)
}

func reorderRules(rs ruleset.Ruleset, order []string) (ruleset.Ruleset, error) {
	if len(order) != len(rs.Rules) {
		return ruleset.Ruleset{}, fmt.Errorf("reorder list has %d entries, ruleset has %d rules", len(order), len(rs.Rules))
	}
	out := ruleset.Ruleset{Version: rs.Version, Rules: make([]ruleset.Rule, 0, len(order))}
	for _, name := range order {
		rule, ok := rs.RuleByID(name)
		if !ok {
			return ruleset.Ruleset{}, fmt.Errorf("unknown rule in reorder list: %q", name)
		}
		out.Rules = append(out.Rules, rule)
	}
	return out, nil
}

func (h *StoreHandler) getRule(w http.ResponseWriter, r *http.Request) {
	rs, err := h.backend.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config", err)
		return
	}
	rule, ok := rs.RuleByID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *StoreHandler) postRule(w http.ResponseWriter, r *http.Request) {
	rule, err := decodeRule(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed rule", err)
		return
	}

	rs, err := h.backend.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config", err)
		return
	}
	if _, exists := rs.RuleByID(rule.Name); exists {
		writeError(w, http.StatusBadRequest, "rule already exists", nil)
		return
	}
	rs.Rules = append(rs.Rules, rule)

	if err := h.save(r, rs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *StoreHandler) putRule(w http.ResponseWriter, r *http.Request) {
	rule, err := decodeRule(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed rule", err)
		return
	}
	id := r.PathValue("id")

	rs, err := h.backend.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config", err)
		return
	}

	replaced := false
	for i := range rs.Rules {
		if rs.Rules[i].Name == id {
			rs.Rules[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		writeError(w, http.StatusNotFound, "rule not found", nil)
		return
	}

	if err := h.save(r, rs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *StoreHandler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rs, err := h.backend.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config", err)
		return
	}

	idx := -1
	for i, rule := range rs.Rules {
		if rule.Name == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		writeError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	rs.Rules = append(rs.Rules[:idx], rs.Rules[idx+1:]...)

	if err := h.save(r, rs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoreHandler) save(r *http.Request, rs ruleset.Ruleset) error {
	if err := h.backend.Save(r.Context(), rs); err != nil {
		return err
	}
	if h.cache != nil {
		h.cache.Invalidate()
	}
	return nil
}

// decodeRuleset and decodeRule unmarshal the request body straight into
// the typed Rule/Ruleset structs with encoding/json. The rateLimit and
// customResponse int fields accept only JSON integers (e.g. 20); a
// fractional number such as 20.0 or a quoted numeric string such as
// "20" is not coerced and the body is rejected as malformed.
func decodeRuleset(r *http.Request) (ruleset.Ruleset, error) {
	body, err := readRequestBody(r)
	if err != nil {
		return ruleset.Ruleset{}, err
	}
	var rs ruleset.Ruleset
	if err := json.Unmarshal(body, &rs); err != nil {
		return ruleset.Ruleset{}, err
	}
	for i := range rs.Rules {
		if err := rs.Rules[i].Validate(); err != nil {
			log.WithError(err).Warn("configcache: rejecting malformed rule on write")
			return ruleset.Ruleset{}, err
		}
	}
	return rs, nil
}

func decodeRule(r *http.Request) (ruleset.Rule, error) {
	body, err := readRequestBody(r)
	if err != nil {
		return ruleset.Rule{}, err
	}
	var rule ruleset.Rule
	if err := json.Unmarshal(body, &rule); err != nil {
		return ruleset.Rule{}, err
	}
	if err := rule.Validate(); err != nil {
		return ruleset.Rule{}, err
	}
	return rule, nil
}

func readRequestBody(r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	env := errorEnvelope{Error: message}
	if err != nil {
		env.Details = err.Error()
	}
	writeJSON(w, status, env)
}

// writeJSON writes v as an uncompressed JSON response with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONGzip gzips the body when the caller advertises support for it —
// a ruleset with hundreds of rules is the one response this API returns
// that's worth the trouble. Without gzip in Accept-Encoding, or if
// compression fails, it falls back to writeJSON.
func writeJSONGzip(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		writeJSON(w, status, v)
		return
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		writeJSON(w, status, v)
		return
	}
	if err := gz.Close(); err != nil {
		writeJSON(w, status, v)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
