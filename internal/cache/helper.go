package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"huddle/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	communitySlugKey = "community:slug:"

	// CommunityTTL bounds how stale a cached community header may be.
	CommunityTTL = 5 * time.Minute
)

// CommunityKey is the cache key of a community header by slug.
func CommunityKey(slug string) string {
	return communitySlugKey + slug
}

// Cache stores JSON values in Redis. A nil client turns every operation
// into a miss, so callers work unchanged without Redis.
type Cache struct {
	rdb *redis.Client
}

// New creates a cache over rdb, which may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// Delete removes keys. Failures are logged; a stale entry expires with its TTL.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		observability.Logger.WarnContext(ctx, "cache_invalidate_failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// Aside tries Redis first; on a miss it calls fetch, which must populate
// dest, then stores dest with ttl. Cache failures degrade to fetch.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		observability.Logger.WarnContext(ctx, "cache_read_failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	// best-effort
	if err := c.SetJSON(ctx, key, dest, ttl); err != nil {
		observability.Logger.WarnContext(ctx, "cache_write_failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
