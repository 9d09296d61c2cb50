// Package fingerprint computes a stable, time-independent identifier for
// the client behind a request, from a configurable list of request
// attributes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MaxBodyBytes bounds how much of the request body is read for
// fingerprinting and condition evaluation. The gateway package forwards
// the full body, not only this prefix.
const MaxBodyBytes = 512 * 1024

// Edge carries per-connection metadata a front proxy attaches to the
// request (TLS version, ASN, bot score, JA3/JA4, country, ...). Nested
// paths are addressed with dots, e.g. "tls.version" or "bot.score".
type Edge map[string]any

// Lookup resolves a dotted path against the edge metadata. Missing
// segments resolve to "".
func (e Edge) Lookup(path string) string {
	var cur any = map[string]any(e)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		v, ok := m[part]
		if !ok {
			return ""
		}
		cur = v
	}
	return stringify(cur)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Request bundles what the dispatch table needs: the HTTP request, the
// buffered body (already capped at MaxBodyBytes, replayable), and the
// edge metadata.
type Request struct {
	HTTP *http.Request
	Body []byte
	Edge Edge
}

// Compute resolves each parameter in order, joins the resolved values
// with "|" and returns the hex SHA-256 digest. It never includes wall
// time — see the deprecated-timestamp note in the design notes.
func Compute(r Request, parameters []string) string {
	parts := make([]string, len(parameters))
	for i, p := range parameters {
		parts[i] = resolveParameter(r, p)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// resolveParameter implements the fixed dispatch table. Unknown
// parameters produce an empty string with a warning.
func resolveParameter(r Request, name string) string {
	switch {
	case name == "clientIP":
		return ClientIP(r.HTTP, r.Edge)
	case name == "method":
		return r.HTTP.Method
	case name == "url":
		return r.HTTP.URL.String()
	case strings.HasPrefix(name, "url."):
		return urlProperty(r.HTTP, name[len("url."):])
	case strings.HasPrefix(name, "headers."):
		return headerParameter(r.HTTP, name[len("headers."):])
	case strings.HasPrefix(name, "cf."):
		return r.Edge.Lookup(name[len("cf."):])
	case name == "body":
		return string(r.Body)
	case strings.HasPrefix(name, "body."):
		return bodyPointer(r.Body, name[len("body."):])
	default:
		log.WithField("parameter", name).Warn("fingerprint: unknown parameter")
		return ""
	}
}

// ClientIP resolves the first non-empty of True-Client-IP,
// CF-Connecting-IP, the first token of X-Forwarded-For, the edge
// metadata's clientIp, else "unknown".
func ClientIP(r *http.Request, edge Edge) string {
	if v := r.Header.Get("True-Client-IP"); v != "" {
		return v
	}
	if v := r.Header.Get("CF-Connecting-IP"); v != "" {
		return v
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		if first, _, found := strings.Cut(v, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(v)
	}
	if v := edge.Lookup("clientIp"); v != "" {
		return v
	}
	return "unknown"
}

func urlProperty(r *http.Request, prop string) string {
	u := r.URL
	switch prop {
	case "hostname":
		return u.Hostname()
	case "pathname":
		return u.Path
	case "search":
		return u.RawQuery
	case "protocol":
		return u.Scheme
	case "port":
		return u.Port()
	case "hash":
		return u.Fragment
	default:
		log.WithField("property", prop).Warn("fingerprint: unknown url property")
		return ""
	}
}

// headerParameter resolves everything after "headers.". The nameValue
// and cookie* forms carry their operand embedded in the parameter
// string (there being no separate operand field on Fingerprint.Parameters,
// unlike a leaf Condition): "nameValue:<name>=<value>" and
// "cookieName:<name>" / "cookieNameValue:<name>=<value>", mirroring how
// url.<prop> and body.<pointer> already embed their own operand in the
// parameter name.
func headerParameter(r *http.Request, rest string) string {
	switch {
	case rest == "nameValue", strings.HasPrefix(rest, "nameValue:"):
		return headerNameValue(r, strings.TrimPrefix(rest, "nameValue:"))
	case rest == "cookieName", strings.HasPrefix(rest, "cookieName:"):
		return cookieName(r, strings.TrimPrefix(rest, "cookieName:"))
	case rest == "cookieNameValue", strings.HasPrefix(rest, "cookieNameValue:"):
		return cookieNameValue(r, strings.TrimPrefix(rest, "cookieNameValue:"))
	default:
		return r.Header.Get(rest)
	}
}

// headerNameValue resolves "headers.nameValue:<name>=<value>" to
// "<name>:<value>" when the named header equals value, else "".
func headerNameValue(r *http.Request, operand string) string {
	name, value, ok := strings.Cut(operand, "=")
	if !ok {
		return ""
	}
	if r.Header.Get(name) != value {
		return ""
	}
	return name + ":" + value
}

// cookieName resolves "headers.cookieName:<name>" to "<name>" when the
// cookie is present, else "".
func cookieName(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	if _, err := r.Cookie(name); err != nil {
		return ""
	}
	return name
}

// cookieNameValue resolves "headers.cookieNameValue:<name>=<value>" to
// "<name>:<value>" when the cookie equals value, else "".
func cookieNameValue(r *http.Request, operand string) string {
	name, value, ok := strings.Cut(operand, "=")
	if !ok {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil || c.Value != value {
		return ""
	}
	return name + ":" + value
}

// bodyPointer extracts a field from a JSON body via a simple
// slash-separated JSON-pointer-like path. Non-JSON bodies fall through
// to the plain-text body.
func bodyPointer(body []byte, pointer string) string {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}
	cur := doc
	for _, part := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		v, ok := m[part]
		if !ok {
			return ""
		}
		cur = v
	}
	return stringify(cur)
}
