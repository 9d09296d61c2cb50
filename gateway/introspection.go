package gateway

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/erfianugrah/do-rl-worker/fingerprint"
	"github.com/erfianugrah/do-rl-worker/match"
)

// introspectionPage renders the human-visible answer to "what's my
// current rate-limit status"; kept deliberately minimal, like
// dispatch.DefaultPageRenderer, since the HTML template itself is an
// external collaborator's concern (§1 Non-goals).
var introspectionPage = template.Must(template.New("rate-limit-info").Parse(`<!DOCTYPE html>
<html>
<head><title>Rate limit status</title></head>
<body>
<h1>Rate limit status</h1>
<p>Limit: {{.Limit}} requests per {{.Period}}s</p>
<p>Remaining: {{.Remaining}}</p>
<p>Resets at: {{.Reset}}</p>
</body>
</html>
`))

type introspectionResponse struct {
	Limit          int    `json:"limit"`
	Remaining      int    `json:"remaining"`
	Reset          int64  `json:"reset"`
	ResetFormatted string `json:"resetFormatted"`
	Period         int    `json:"period"`
}

// Introspect implements GET <RATE_LIMIT_INFO_PATH> (§6): the caller's
// current {limit, remaining, reset, resetFormatted, period} for
// whichever rule would match the request, reusing the same rule
// matcher/fingerprinter/counter store the pipeline itself uses. Like any
// other request against a matching rule, the probe itself consumes one
// slot in the sliding window.
func (p *Pipeline) Introspect(w http.ResponseWriter, r *http.Request) {
	rs := p.loadConfig(r.Context())
	body := bufferRequestBody(r, fingerprint.MaxBodyBytes)
	edge := p.edgeFor(r)

	result := match.Match(rs, match.Context{HTTP: r, Body: body, Edge: edge})
	if !result.Matched || !result.Action.Type.Terminal() {
		writeIntrospection(w, r, introspectionResponse{})
		return
	}

	key, _ := p.counterKey(result.Rule, fingerprint.Request{HTTP: r, Body: body, Edge: edge})
	decision, err := p.checkCounter(r.Context(), key, result.Rule.RateLimit)
	if err != nil {
		writeIntrospection(w, r, introspectionResponse{})
		return
	}

	writeIntrospection(w, r, introspectionResponse{
		Limit:          decision.Limit,
		Remaining:      decision.Remaining,
		Reset:          decision.ResetTime,
		ResetFormatted: time.Unix(decision.ResetTime, 0).UTC().Format(time.RFC3339),
		Period:         decision.Period,
	})
}

func writeIntrospection(w http.ResponseWriter, r *http.Request, resp introspectionResponse) {
	if acceptsHTML(r) {
		w.Header().Set("Content-Type", "text/html")
		_ = introspectionPage.Execute(w, resp)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
