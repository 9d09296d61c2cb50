package configcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfianugrah/do-rl-worker/ruleset"
)

func TestCacheRefreshesOnFirstGet(t *testing.T) {
	rs := ruleset.Ruleset{Version: "1", Rules: []ruleset.Rule{{Name: "a"}}}
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context) (ruleset.Ruleset, error) {
		calls++
		return rs, nil
	})

	c := NewCache(fetcher, time.Minute, nil)
	got := c.Get(context.Background())

	assert.Equal(t, 1, calls)
	assert.Equal(t, rs, got)
}

func TestCacheServesStaleWithinTTLWithoutRefetching(t *testing.T) {
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context) (ruleset.Ruleset, error) {
		calls++
		return ruleset.Ruleset{Version: "1"}, nil
	})

	c := NewCache(fetcher, time.Hour, nil)
	c.Get(context.Background())
	c.Get(context.Background())
	c.Get(context.Background())

	assert.Equal(t, 1, calls)
}

func TestCacheFailsStaleOnRefreshError(t *testing.T) {
	good := ruleset.Ruleset{Version: "1", Rules: []ruleset.Rule{{Name: "a"}}}
	fail := false
	fetcher := FetcherFunc(func(ctx context.Context) (ruleset.Ruleset, error) {
		if fail {
			return ruleset.Ruleset{}, errors.New("backend unreachable")
		}
		return good, nil
	})

	c := NewCache(fetcher, 0, nil) // TTL 0: every Get refreshes
	first := c.Get(context.Background())
	require.Equal(t, good, first)

	fail = true
	second := c.Get(context.Background())
	assert.Equal(t, good, second, "a refresh failure must keep serving the last good snapshot")
}

func TestCacheInvalidateForcesRefreshRegardlessOfTTL(t *testing.T) {
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context) (ruleset.Ruleset, error) {
		calls++
		return ruleset.Ruleset{Version: "1"}, nil
	})

	c := NewCache(fetcher, time.Hour, nil)
	c.Get(context.Background())
	require.Equal(t, 1, calls)

	c.Invalidate()
	c.Get(context.Background())
	assert.Equal(t, 2, calls)
}
