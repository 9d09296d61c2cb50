package counter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript performs eviction, cardinality check, conditional
// admission and expiry in one atomic round trip, so that concurrent
// requests for the same CounterKey across a fleet of replicas see a
// single, totally-ordered sequence of reads and writes — this is what
// gives the Redis backend its single-writer semantics without a
// distributed lock. Grounded on the teacher's net/valkey.go RunScript
// usage, adapted from the Lua-via-valkey client to go-redis/v9's Script
// type.
//
// KEYS[1] = counter key (a sorted set: member -> timestamp score)
// ARGV[1] = now (ms)
// ARGV[2] = window start (ms), entries with score <= this are evicted
// ARGV[3] = limit
// ARGV[4] = period (seconds), used for the key's expiry
// ARGV[5] = random member token for this request, added only if admitted
//
// Returns {allowed (0/1), count after the operation, oldest remaining score or -1}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local period = tonumber(ARGV[4])
local member = ARGV[5]

redis.call("ZREMRANGEBYSCORE", key, "-inf", windowStart)

local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
	redis.call("ZADD", key, now, member)
	count = count + 1
	allowed = 1
end

redis.call("PEXPIRE", key, period * 1000)

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local oldestScore = -1
if #oldest == 2 then
	oldestScore = tonumber(oldest[2])
end

return {allowed, count, oldestScore}
`)

// RedisStore implements Store over a shared Redis (or Redis-compatible)
// instance, giving every replica in a fleet the same view of each
// CounterKey's sliding window.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing client. The caller owns the client's
// lifecycle beyond Close, which only closes it if it implements
// io.Closer via redis.UniversalClient's Close method.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Check implements Store.
func (r *RedisStore) Check(ctx context.Context, key Key, limit, periodSeconds int, now time.Time) (Decision, error) {
	nowMS := now.UnixMilli()
	start := windowStart(now, periodSeconds)

	member, err := randomToken()
	if err != nil {
		return Decision{}, fmt.Errorf("counter: generate member token: %w", err)
	}

	res, err := slidingWindowScript.Run(ctx, r.client, []string{string(key)},
		nowMS, start, limit, periodSeconds, member).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("counter: sliding window script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("counter: unexpected script reply shape: %v", res)
	}

	allowed := toInt64(res[0]) == 1
	count := toInt64(res[1])
	oldest := toInt64(res[2])

	remaining := int(int64(limit) - count)
	if remaining < 0 {
		remaining = 0
	}

	resetTime := nowMS + 1000
	if oldest >= 0 {
		candidate := oldest + int64(periodSeconds)*1000
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
	}, nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func randomToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}
