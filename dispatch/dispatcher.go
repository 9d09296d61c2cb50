// Package dispatch implements the action dispatcher: it turns a
// (matched rule, counter verdict) pair into the concrete outgoing
// response — pass the request through to origin unchanged, synthesize a
// block/custom/rate-limit response, or forward with an observability
// marker attached.
package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/erfianugrah/do-rl-worker/counter"
	"github.com/erfianugrah/do-rl-worker/ruleset"
)

// Outcome is what the caller (the gateway's request pipeline) must do
// with the response.
type Outcome struct {
	// Forward reports whether the request should still be sent to
	// origin. When false, Body/StatusCode/ContentType are the
	// complete synthesized response.
	Forward bool

	StatusCode  int
	Body        []byte
	ContentType string

	// Headers are merged onto whichever response goes to the client,
	// forwarded or synthesized.
	Headers http.Header
}

// Dispatch maps the matched rule, the action that fired and the counter
// decision into an Outcome, per the distilled spec's §4.5 response
// mapping.
func Dispatch(rule ruleset.Rule, action ruleset.Action, decision counter.Decision, clientIdentifier string, acceptsHTML bool, renderer PageRenderer) Outcome {
	headers := rateLimitHeaders(decision, clientIdentifier)
	if !decision.Allowed {
		headers.Set("Retry-After", fmt.Sprint(decision.RetryAfter))
	}

	switch {
	case decision.Allowed && action.Type == ruleset.ActionSimulate:
		headers.Set("X-Rate-Limit-Simulated", "false")
		return Outcome{Forward: true, Headers: headers}

	case decision.Allowed:
		return Outcome{Forward: true, Headers: headers}

	case action.Type == ruleset.ActionLog:
		return Outcome{Forward: true, Headers: headers}

	case action.Type == ruleset.ActionSimulate:
		headers.Set("X-Rate-Limit-Simulated", "true")
		return Outcome{Forward: true, Headers: headers}

	case action.Type == ruleset.ActionBlock:
		return Outcome{
			Forward:     false,
			StatusCode:  http.StatusForbidden,
			ContentType: "text/plain",
			Body:        []byte("Forbidden"),
			Headers:     headers,
		}

	case action.Type == ruleset.ActionCustomResponse:
		return Outcome{
			Forward:     false,
			StatusCode:  action.StatusCode,
			ContentType: action.ContentType(),
			Body:        []byte(action.Body),
			Headers:     headers,
		}

	default: // ruleset.ActionRateLimit and any unspecified action default here.
		return rateLimitPage(decision, acceptsHTML, renderer, headers)
	}
}

func rateLimitHeaders(d counter.Decision, clientIdentifier string) http.Header {
	h := make(http.Header)
	h.Set("X-Rate-Limit-Limit", fmt.Sprint(d.Limit))
	h.Set("X-Rate-Limit-Remaining", fmt.Sprint(d.Remaining))
	h.Set("X-Rate-Limit-Period", fmt.Sprint(d.Period))
	h.Set("X-Rate-Limit-Reset", fmt.Sprint(d.ResetTime))
	h.Set("X-Rate-Limit-Reset-Precise", fmt.Sprintf("%.3f", float64(d.ResetTimeMS)/1000))
	h.Set("X-Client-Identifier", clientIdentifier)
	return h
}

func rateLimitPage(d counter.Decision, acceptsHTML bool, renderer PageRenderer, headers http.Header) Outcome {
	if acceptsHTML && renderer != nil {
		body, err := renderer.Render(PageData{
			Limit:      d.Limit,
			Period:     d.Period,
			RetryAfter: d.RetryAfter,
			ResetTime:  time.Unix(d.ResetTime, 0),
		})
		if err == nil {
			return Outcome{
				Forward:     false,
				StatusCode:  http.StatusTooManyRequests,
				ContentType: "text/html",
				Body:        body,
				Headers:     headers,
			}
		}
	}

	body, _ := json.Marshal(map[string]any{
		"error":      "Rate limit exceeded",
		"retryAfter": d.RetryAfter,
	})
	return Outcome{
		Forward:     false,
		StatusCode:  http.StatusTooManyRequests,
		ContentType: "application/json",
		Body:        body,
		Headers:     headers,
	}
}
