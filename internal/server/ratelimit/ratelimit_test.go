package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_TakeAndRefill(t *testing.T) {
	start := time.Unix(1000, 0)
	b := newBucket(3, 1.0, start)

	for i := 0; i < 3; i++ {
		ok, _, _ := b.take(start)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, remaining, full := b.take(start)
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, start.Add(3*time.Second), full)

	ok, _, _ = b.take(start.Add(time.Second))
	assert.True(t, ok, "one token refilled after a second")
}

func TestMatch(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name   string
		path   string
		method string
		suffix string
		isNil  bool
	}{
		{name: "health unlimited", path: "/health", method: "GET"},
		{name: "suggestion", path: "/sessions/s1/stages/layer5-step1-1/suggestion", method: "POST", suffix: "/suggestion"},
		{name: "dismiss suggestion uses default", path: "/sessions/s1/stages/layer5-step1-1/suggestion", method: "DELETE", isNil: true},
		{name: "confirm", path: "/sessions/s1/stages/layer1-step5-1/revision/confirm", method: "POST", suffix: "/revision/confirm"},
		{name: "trailing slash", path: "/sessions/s1/audit/stream/", method: "POST", suffix: "/audit/stream"},
		{name: "snapshot uses default", path: "/sessions/s1/stages/layer1-step5-1", method: "GET", isNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := Match(tt.path, tt.method, rules)
			if tt.isNil {
				assert.Nil(t, rule)
				return
			}
			require.NotNil(t, rule)
			assert.Equal(t, tt.suffix, rule.Suffix)
		})
	}
}

func TestLimiter_RuleLimit(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules:         []Rule{{Method: "POST", Suffix: "/suggestion", Limit: 2, Window: time.Hour}},
	})
	defer limiter.Stop()
	now := time.Unix(5000, 0)
	limiter.now = func() time.Time { return now }

	path := "/sessions/s1/stages/layer5-step1-1/suggestion"
	ok, info := limiter.Allow("10.0.0.1", path, "POST")
	assert.True(t, ok)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	ok, _ = limiter.Allow("10.0.0.1", path, "POST")
	assert.True(t, ok)

	ok, info = limiter.Allow("10.0.0.1", path, "POST")
	assert.False(t, ok)
	assert.Greater(t, info.RetryAfter, time.Duration(0))

	ok, _ = limiter.Allow("10.0.0.2", path, "POST")
	assert.True(t, ok, "buckets are per client")

	ok, _ = limiter.Allow("10.0.0.1", "/sessions/s1", "GET")
	assert.True(t, ok, "other endpoints use the default bucket")
}

func TestLimiter_DisabledAndWhitelist(t *testing.T) {
	disabled := NewLimiter(&Config{Enabled: false})
	for i := 0; i < 50; i++ {
		ok, _ := disabled.Allow("c", "/documents", "POST")
		require.True(t, ok)
	}

	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"trusted": true},
	})
	for i := 0; i < 5; i++ {
		ok, _ := limiter.Allow("trusted", "/sessions", "POST")
		require.True(t, ok)
	}
	ok, _ := limiter.Allow("other", "/sessions", "POST")
	assert.True(t, ok)
	ok, _ = limiter.Allow("other", "/sessions", "POST")
	assert.False(t, ok)
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})
	now := time.Unix(0, 0)
	limiter.now = func() time.Time { return now }

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("c", "/x", "GET"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}
