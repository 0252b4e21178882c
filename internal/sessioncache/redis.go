// Package sessioncache implements the volatile cache-aside layer in front
// of the Session Store, so a status() poll under load doesn't hit
// Postgres on every call.
package sessioncache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/observability"
)

// Config bounds the Redis-backed cache.
type Config struct {
	Address   string
	Namespace string
	TTL       time.Duration
}

// RedisCache implements uploadservice.SessionCache over go-redis.
type RedisCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	log       *observability.Logger
}

// New connects to Redis and returns a ready RedisCache. Connection
// failures are logged, not fatal: every method degrades to a cache miss
// rather than blocking the upload path on Redis availability.
func New(cfg Config, log *observability.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{Addr: cfg.Address})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisCache{client: client, namespace: cfg.Namespace, ttl: ttl, log: log}
}

func (c *RedisCache) key(sessionID string) string {
	return c.namespace + ":session:" + sessionID
}

// Get implements uploadservice.SessionCache. Any Redis error, including a
// miss, is reported as (nil, false) — the caller always has the Session
// Store to fall back to.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (*domain.Session, bool) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err != nil {
		if err != redis.Nil && c.log != nil {
			c.log.WithComponent("sessioncache").Warn("get failed: " + err.Error())
		}
		return nil, false
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		if c.log != nil {
			c.log.WithComponent("sessioncache").Warn("unmarshal failed: " + err.Error())
		}
		return nil, false
	}
	return &sess, true
}

// Set implements uploadservice.SessionCache, swallowing write failures —
// a cache-populate failure must never fail the caller's request.
func (c *RedisCache) Set(ctx context.Context, sessionID string, s *domain.Session) {
	data, err := json.Marshal(s)
	if err != nil {
		if c.log != nil {
			c.log.WithComponent("sessioncache").Warn("marshal failed: " + err.Error())
		}
		return
	}
	if err := c.client.Set(ctx, c.key(sessionID), data, c.ttl).Err(); err != nil {
		if c.log != nil {
			c.log.WithComponent("sessioncache").Warn("set failed: " + err.Error())
		}
	}
}

// Invalidate implements uploadservice.SessionCache.
func (c *RedisCache) Invalidate(ctx context.Context, sessionID string) {
	if err := c.client.Del(ctx, c.key(sessionID)).Err(); err != nil && c.log != nil {
		c.log.WithComponent("sessioncache").Warn("invalidate failed: " + err.Error())
	}
}

// Close releases the underlying Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks connectivity to Redis, for health.CacheChecker.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
