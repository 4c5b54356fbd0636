package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/textaudit/layered-audit/internal/types"
)

// MemoryRepository keeps sessions in an expiring in-process cache.
type MemoryRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

// NewMemoryRepository creates a MemoryRepository whose sessions expire after ttl
// without activity. Expired items are purged every ttl/6.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryRepository{
		cache: cache.New(ttl, ttl/6),
		now:   time.Now,
	}
}

// InsertSession stores a copy of s.
func (r *MemoryRepository) InsertSession(_ context.Context, s *types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cache.Add(s.ID, *s, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

// GetSession returns a copy of the stored session.
func (r *MemoryRepository) GetSession(_ context.Context, id string) (*types.Session, error) {
	if x, found := r.cache.Get(id); found {
		s := x.(types.Session)
		return &s, nil
	}
	return nil, nil
}

// SetSessionStep records the current step and refreshes the expiry.
func (r *MemoryRepository) SetSessionStep(_ context.Context, id string, step types.StageID) (bool, error) {
	return r.update(id, func(s *types.Session) { s.CurrentStep = step }), nil
}

// SetSessionDocument pins documentID and refreshes the expiry.
func (r *MemoryRepository) SetSessionDocument(_ context.Context, id, documentID string) (bool, error) {
	return r.update(id, func(s *types.Session) { s.DocumentID = documentID }), nil
}

func (r *MemoryRepository) update(id string, apply func(*types.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, found := r.cache.Get(id)
	if !found {
		return false
	}
	s := x.(types.Session)
	apply(&s)
	s.UpdatedAt = r.now().UTC()
	r.cache.Set(id, s, cache.DefaultExpiration)
	return true
}
