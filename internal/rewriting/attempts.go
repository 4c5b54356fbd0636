package rewriting

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultMaxAttempts is the number of automatic revisions per session.
const DefaultMaxAttempts = 3

// DefaultAttemptTTL is how long an idle session's count is kept.
const DefaultAttemptTTL = 2 * time.Hour

// attemptTracker counts automatic revisions per key. Counts live in an
// expiring cache; using an attempt refreshes the key's expiry, so a session
// that went idle long enough to expire starts over with a full allowance.
type attemptTracker struct {
	mu    sync.Mutex
	limit int
	used  *cache.Cache
}

func newAttemptTracker(limit int, ttl time.Duration) *attemptTracker {
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	if ttl <= 0 {
		ttl = DefaultAttemptTTL
	}
	return &attemptTracker{limit: limit, used: cache.New(ttl, ttl/2)}
}

func (t *attemptTracker) count(key string) int {
	if x, found := t.used.Get(key); found {
		return x.(int)
	}
	return 0
}

func (t *attemptTracker) remaining(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limit - t.count(key)
}

// reserve claims an attempt. It returns false when none are left.
func (t *attemptTracker) reserve(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.count(key)
	if n >= t.limit {
		return false
	}
	t.used.Set(key, n+1, cache.DefaultExpiration)
	return true
}

// refund returns a reserved attempt after a failed call.
func (t *attemptTracker) refund(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n := t.count(key); {
	case n > 1:
		t.used.Set(key, n-1, cache.DefaultExpiration)
	case n == 1:
		t.used.Delete(key)
	}
}

// tracked reports how many keys hold a live count.
func (t *attemptTracker) tracked() int {
	t.used.DeleteExpired()
	return t.used.ItemCount()
}
