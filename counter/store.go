// Package counter implements the sliding-window rate counter: a
// per-identifier ordered list of request timestamps, bounded by a limit
// and a period, with strongly-consistent single-writer semantics per
// CounterKey. Two backends implement Store: an in-process striped-mutex
// table (memory.go) and a Redis sorted-set backend (redis.go).
package counter

import (
	"context"
	"fmt"
	"time"
)

// Key identifies one sliding-window counter.
type Key string

// RuleKey builds the CounterKey for a fingerprint-based identifier.
func RuleKey(ruleName, fingerprintHash string) Key {
	return Key(fmt.Sprintf("rate_limit:%s:fingerprint:%s", ruleName, fingerprintHash))
}

// RuleIPKey builds the CounterKey for an IP-based identifier.
func RuleIPKey(ruleName, ip string) Key {
	return Key(fmt.Sprintf("rate_limit:%s:ip:%s", ruleName, ip))
}

// RuleDefaultKey builds the CounterKey used when a rule has no
// fingerprint spec at all.
func RuleDefaultKey(ruleName string) Key {
	return Key(fmt.Sprintf("rate_limit:%s:default", ruleName))
}

// Decision is the outcome of one sliding-window check.
type Decision struct {
	Allowed bool

	Limit      int
	Remaining  int
	Period     int   // seconds
	ResetTime  int64 // unix seconds
	ResetTimeMS int64 // unix milliseconds, full precision for X-Rate-Limit-Reset-Precise
	RetryAfter int64 // seconds, 0 when allowed
}

// Store is implemented by every counter backend.
type Store interface {
	// Check applies the sliding-window algorithm for key at time now:
	// evict expired timestamps, admit or deny, persist, and return the
	// resulting Decision. limit and period come from the matched
	// rule's RateLimit.
	Check(ctx context.Context, key Key, limit, periodSeconds int, now time.Time) (Decision, error)

	Close() error
}

// windowStart returns the boundary (ms since epoch) of the window ending
// at now: a timestamp at or before it is evicted, so a timestamp exactly
// period seconds old is already outside the window (only ts > windowStart
// is kept), per the design notes' chosen boundary policy.
func windowStart(now time.Time, periodSeconds int) int64 {
	return now.UnixMilli() - int64(periodSeconds)*1000
}
