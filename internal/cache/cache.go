// Package cache keeps computed score reports per profile.
//
// When REDIS_URL is reachable, entries live only in redis so every replica
// sees the same entry and an invalidation on one replica is seen by all.
// Without redis, entries live in process memory. Every commit invalidates
// the profile's entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dossier:score:"

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Cache is safe for concurrent use. A nil *Cache is a valid, always-missing
// cache.
type Cache struct {
	l1     sync.Map // key -> *entry, only used without redis
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New builds a cache. An empty or unreachable redisURL leaves only the
// in-memory tier.
func New(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) *Cache {
	c := &Cache{ttl: ttl, logger: logger}
	if redisURL == "" {
		logger.Info("score cache: redis disabled", "ttl", ttl)
		return c
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("score cache: invalid redis URL, redis disabled", "error", err)
		return c
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("score cache: redis unreachable, redis disabled", "error", err)
		_ = rdb.Close()
		return c
	}
	c.rdb = rdb
	logger.Info("score cache: redis connected", "addr", opts.Addr, "ttl", ttl)
	return c
}

func key(profileID uuid.UUID) string {
	return keyPrefix + profileID.String()
}

// Get decodes the cached report for profileID into out.
func (c *Cache) Get(ctx context.Context, profileID uuid.UUID, out any) bool {
	if c == nil {
		return false
	}
	k := key(profileID)

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, k).Bytes()
		if err == nil && json.Unmarshal(data, out) == nil {
			c.hits.Add(1)
			return true
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			c.logger.Debug("score cache: redis get failed", "profile_id", profileID, "error", err)
		}
		c.misses.Add(1)
		return false
	}

	if v, ok := c.l1.Load(k); ok {
		e := v.(*entry)
		if time.Now().Before(e.expiresAt) && json.Unmarshal(e.data, out) == nil {
			c.hits.Add(1)
			return true
		}
		c.l1.Delete(k)
	}
	c.misses.Add(1)
	return false
}

// Set stores v for profileID. Failures are logged only.
func (c *Cache) Set(ctx context.Context, profileID uuid.UUID, v any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("score cache: marshal failed", "profile_id", profileID, "error", err)
		return
	}
	k := key(profileID)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, k, data, c.ttl).Err(); err != nil {
			c.logger.Warn("score cache: redis set failed", "profile_id", profileID, "error", err)
		}
		return
	}
	c.l1.Store(k, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})
}

func (c *Cache) Invalidate(ctx context.Context, profileID uuid.UUID) {
	if c == nil {
		return
	}
	k := key(profileID)
	c.l1.Delete(k)
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, k).Err(); err != nil {
			c.logger.Warn("score cache: redis delete failed", "profile_id", profileID, "error", err)
		}
	}
}

// Stats returns hit and miss counters since start.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Redis reports whether the redis tier is active.
func (c *Cache) Redis() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
