// Package cache is an optional Redis-backed cache for recommendation
// responses. Staleness within the TTL is acceptable by policy; correctness
// never depends on the cache being present or warm.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/learncore/internal/logger"
	"github.com/example/learncore/pkg/models"
)

// RecommendCache stores recommendNext responses keyed by
// (user, k, levelHint) under a per-user generation counter, so
// invalidation is a single INCR instead of a key scan.
type RecommendCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// New connects to Redis. An empty addr disables the cache: every method
// on a nil *RecommendCache is a no-op.
func New(addr string, ttl time.Duration, log *logger.Logger) *RecommendCache {
	if addr == "" {
		return nil
	}
	return &RecommendCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
		log: log.With("component", "recommend_cache"),
	}
}

func (c *RecommendCache) generation(ctx context.Context, userID string) int64 {
	gen, err := c.rdb.Get(ctx, "recgen:"+userID).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("cache generation read failed", "error", err)
	}
	return gen
}

func (c *RecommendCache) key(ctx context.Context, userID string, k int, levelHint string) string {
	return fmt.Sprintf("rec:%s:%d:%d:%s", userID, c.generation(ctx, userID), k, levelHint)
}

// Get returns a cached response, or ok=false on miss or any cache error.
func (c *RecommendCache) Get(ctx context.Context, userID string, k int, levelHint string) ([]models.Recommendation, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.key(ctx, userID, k, levelHint)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", "error", err)
		}
		return nil, false
	}
	var recs []models.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

// Set stores a response. Best effort.
func (c *RecommendCache) Set(ctx context.Context, userID string, k int, levelHint string, recs []models.Recommendation) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(ctx, userID, k, levelHint), raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", "error", err)
	}
}

// Invalidate bumps the user's generation so all cached responses for the
// user miss from now on. Called after a committed attempt.
func (c *RecommendCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, "recgen:"+userID).Err(); err != nil {
		c.log.Warn("cache invalidation failed", "error", err)
	}
}

// Close releases the connection.
func (c *RecommendCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
