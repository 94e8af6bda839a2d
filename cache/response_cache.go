// Package cache implements MadSpark's multi-level response cache (spec.md
// §4.D): an in-process LRU tier backed by an optional Redis tier, keyed on a
// hash of (schema, model, temperature, system instruction, normalized
// prompt). Cache hits report zero latency and zero cost.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/madspark/orchestrator/config"
)

// ErrMiss indicates neither cache tier held the key.
var ErrMiss = errors.New("cache: miss")

// ResponseCache is MadSpark's two-tier structured-response cache.
type ResponseCache struct {
	local  *lruCache
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New builds a ResponseCache from config.CacheConfig. rdb may be nil —
// UseRedis is then ignored and the cache runs local-only.
func New(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	var r *redis.Client
	if cfg.UseRedis {
		r = rdb
	}

	return &ResponseCache{
		local:  newLRUCache(cfg.LocalMaxSize, ttl),
		redis:  r,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached raw JSON for key with ok=true. A miss, a Redis
// error (logged) and an undecodable Redis entry all return ok=false and a
// nil error.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if entry, ok := c.local.Get(key); ok {
		return entry.RawJSON, true, nil
	}

	if c.redis == nil {
		return nil, false, nil
	}

	data, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		c.logger.Warn("redis cache get failed", zap.Error(err))
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, nil
	}
	c.local.Set(key, &entry)
	return entry.RawJSON, true, nil
}

// Set stores rawJSON under key in both tiers.
func (c *ResponseCache) Set(ctx context.Context, key string, rawJSON []byte) error {
	entry := &Entry{
		RawJSON:   rawJSON,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.local.Set(key, entry)

	if c.redis == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", zap.Error(err))
		return err
	}
	return nil
}

func (c *ResponseCache) redisKey(key string) string {
	return "madspark:cache:" + key
}
