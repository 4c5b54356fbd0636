package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textaudit/layered-audit/internal/types"
)

const keyPrefix = "audit:session:"

// Hash fields of a stored session.
const (
	fieldStep      = "current_step"
	fieldDocument  = "document_id"
	fieldUpdatedAt = "updated_at"
)

// RedisRepository stores each session as a hash with a sliding expiry.
type RedisRepository struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisRepository creates a RedisRepository. A zero ttl keeps sessions forever.
func NewRedisRepository(rdb *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{rdb: rdb, ttl: ttl, now: time.Now}
}

// NewRedisClient parses a redis URL, falling back to treating it as a plain address.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func key(id string) string {
	return keyPrefix + id
}

// InsertSession stores s, failing if the id is taken.
func (r *RedisRepository) InsertSession(ctx context.Context, s *types.Session) error {
	k := key(s.ID)
	created, err := r.rdb.HSetNX(ctx, k, fieldUpdatedAt, s.UpdatedAt.Format(time.RFC3339Nano)).Result()
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	if !created {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, k, fieldStep, string(s.CurrentStep), fieldDocument, s.DocumentID)
	r.expire(ctx, pipe, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession loads a session hash.
func (r *RedisRepository) GetSession(ctx context.Context, id string) (*types.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, key(id)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s := &types.Session{
		ID:          id,
		CurrentStep: types.StageID(fields[fieldStep]),
		DocumentID:  fields[fieldDocument],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err == nil {
		s.UpdatedAt = ts
	}
	return s, nil
}

// SetSessionStep records the current step.
func (r *RedisRepository) SetSessionStep(ctx context.Context, id string, step types.StageID) (bool, error) {
	return r.set(ctx, id, fieldStep, string(step))
}

// SetSessionDocument pins documentID.
func (r *RedisRepository) SetSessionDocument(ctx context.Context, id, documentID string) (bool, error) {
	return r.set(ctx, id, fieldDocument, documentID)
}

func (r *RedisRepository) set(ctx context.Context, id, field, value string) (bool, error) {
	k := key(id)
	n, err := r.rdb.Exists(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to update session: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, k, field, value, fieldUpdatedAt, r.now().UTC().Format(time.RFC3339Nano))
	r.expire(ctx, pipe, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to update session: %w", err)
	}
	return true, nil
}

func (r *RedisRepository) expire(ctx context.Context, pipe redis.Pipeliner, k string) {
	if r.ttl > 0 {
		pipe.Expire(ctx, k, r.ttl)
	}
}
