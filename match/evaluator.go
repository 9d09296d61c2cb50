// Package match implements the condition evaluator and rule matcher: the
// boolean expression language rules are written in, and the walk over an
// ordered ruleset that picks a winning action for one request.
package match

import (
	"net/http"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"go4.org/netipx"

	"github.com/erfianugrah/do-rl-worker/fingerprint"
	"github.com/erfianugrah/do-rl-worker/ruleset"
)

// Context bundles what the evaluator needs to resolve a condition's
// field against one request.
type Context struct {
	HTTP *http.Request
	Body []byte
	Edge fingerprint.Edge
}

// Evaluate recursively evaluates a condition tree. It never panics: a
// malformed or unresolved node evaluates to false, with a warning logged
// so operators can see the bad rule without a crashed request.
func Evaluate(c ruleset.Condition, ctx Context) bool {
	if c.IsGroup() {
		return evaluateGroup(c, ctx)
	}
	return evaluateLeaf(c, ctx)
}

// EvaluateAll evaluates a list of sibling conditions combined by logic,
// used directly for a MatchBranch's top-level condition list.
func EvaluateAll(conditions []ruleset.Condition, logic ruleset.Logic, ctx Context) bool {
	return evaluateChildren(conditions, logic, ctx)
}

func evaluateGroup(c ruleset.Condition, ctx Context) bool {
	return evaluateChildren(c.Conditions, c.Logic, ctx)
}

func evaluateChildren(children []ruleset.Condition, logic ruleset.Logic, ctx Context) bool {
	if len(children) == 0 {
		return false
	}
	switch logic {
	case ruleset.Or:
		for _, child := range children {
			if Evaluate(child, ctx) {
				return true
			}
		}
		return false
	default: // And is the default, matching the distilled spec's short-circuit on first false.
		for _, child := range children {
			if !Evaluate(child, ctx) {
				return false
			}
		}
		return true
	}
}

func evaluateLeaf(c ruleset.Condition, ctx Context) bool {
	value, ok := resolveField(c, ctx)
	if !ok {
		log.WithField("field", c.Field).Warn("match: unresolved field")
		return false
	}
	return applyOperator(c.Operator, value, c.Value)
}

// resolveField resolves a leaf's field against the request, using the
// leaf's own operands for the header name/value and cookie-name forms.
func resolveField(c ruleset.Condition, ctx Context) (string, bool) {
	switch {
	case c.Field == "clientIP":
		return fingerprint.ClientIP(ctx.HTTP, ctx.Edge), true
	case c.Field == "method":
		return ctx.HTTP.Method, true
	case c.Field == "url":
		return ctx.HTTP.URL.String(), true
	case strings.HasPrefix(c.Field, "url."):
		u := ctx.HTTP.URL
		props := map[string]string{"hostname": u.Hostname(), "pathname": u.Path, "search": u.RawQuery,
			"protocol": u.Scheme, "port": u.Port(), "hash": u.Fragment}
		value, ok := props[c.Field[len("url."):]]
		return value, ok
	case c.Field == "headers.nameValue":
		got := ctx.HTTP.Header.Get(c.HeaderName)
		if got == c.HeaderValue {
			return c.HeaderName + ":" + c.HeaderValue, true
		}
		return "", true
	case c.Field == "headers.cookieName":
		if _, err := ctx.HTTP.Cookie(c.CookieName); err == nil {
			return c.CookieName, true
		}
		return "", true
	case strings.HasPrefix(c.Field, "headers."):
		return ctx.HTTP.Header.Get(c.Field[len("headers."):]), true
	case strings.HasPrefix(c.Field, "cf."):
		return ctx.Edge.Lookup(c.Field[len("cf."):]), true
	case c.Field == "body":
		return string(ctx.Body), true
	case strings.HasPrefix(c.Field, "body."):
		return fingerprint.Compute(fingerprint.Request{HTTP: ctx.HTTP, Body: ctx.Body, Edge: ctx.Edge}, []string{c.Field}), true
	default:
		return "", false
	}
}

func applyOperator(op ruleset.Operator, fieldValue, operand string) bool {
	switch op {
	case ruleset.OpEq:
		if cidrResult, isCIDR := matchCIDR(fieldValue, operand); isCIDR {
			return cidrResult
		}
		return fieldValue == operand
	case ruleset.OpNe:
		return fieldValue != operand
	case ruleset.OpGt, ruleset.OpGe, ruleset.OpLt, ruleset.OpLe:
		return compareNumeric(op, fieldValue, operand)
	case ruleset.OpContains:
		return strings.Contains(fieldValue, operand)
	case ruleset.OpNotContains:
		return !strings.Contains(fieldValue, operand)
	case ruleset.OpStartsWith:
		return strings.HasPrefix(fieldValue, operand)
	case ruleset.OpEndsWith:
		return strings.HasSuffix(fieldValue, operand)
	case ruleset.OpMatches:
		re, err := regexp.Compile(operand)
		if err != nil {
			log.WithError(err).WithField("pattern", operand).Warn("match: invalid regex")
			return false
		}
		return re.MatchString(fieldValue)
	default:
		log.WithField("operator", op).Warn("match: unknown operator")
		return false
	}
}

// matchCIDR reports whether operand parses as a CIDR prefix (IPv4 or
// IPv6) and, if so,
// whether fieldValue falls inside it. The operand is built into a single
// prefix IPSet rather than compared with a raw net.IPNet so that a future
// comma-separated list of CIDRs can be supported without changing the
// call site. The core spec is IPv4-only.
func matchCIDR(fieldValue, operand string) (result, isCIDR bool) {
	if !strings.Contains(operand, "/") {
		return false, false
	}
	prefix, err := netip.ParsePrefix(operand)
	if err != nil {
		return false, false
	}

	var b netipx.IPSetBuilder
	b.AddPrefix(prefix)
	set, err := b.IPSet()
	if err != nil {
		log.WithError(err).WithField("cidr", operand).Warn("match: invalid CIDR set")
		return false, true
	}

	addr, err := netip.ParseAddr(fieldValue)
	if err != nil {
		return false, true
	}
	return set.Contains(addr), true
}

func compareNumeric(op ruleset.Operator, left, right string) bool {
	l, lerr := strconv.ParseFloat(left, 64)
	r, rerr := strconv.ParseFloat(right, 64)
	if lerr != nil || rerr != nil {
		log.WithField("left", left).WithField("right", right).Warn("match: non-numeric comparison")
		return false
	}
	switch op {
	case ruleset.OpGt:
		return l > r
	case ruleset.OpGe:
		return l >= r
	case ruleset.OpLt:
		return l < r
	case ruleset.OpLe:
		return l <= r
	default:
		return false
	}
}
