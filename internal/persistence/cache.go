package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a best-effort TTL cache. Entries may be evicted before their TTL
// expires; callers must treat every read as advisory.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// RedisCache implements Cache with SET EX on the shared connection. Cache
// failures are swallowed: a miss is always a safe answer.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache builds a Cache over the shared Redis connection.
func NewRedisCache(r *Redis) *RedisCache {
	return &RedisCache{client: r.Client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || err != nil {
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	_ = c.client.Del(ctx, key).Err()
}

// MemoryCache is an in-memory TTL cache with a size cap, used in tests and
// local development.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]memoryCacheItem
	maxSize int
}

type memoryCacheItem struct {
	value      string
	expiration time.Time
}

// NewMemoryCache builds an empty cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryCacheItem), maxSize: maxSize}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiration) {
		return "", false
	}
	return item.value, true
}

func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = memoryCacheItem{value: value, expiration: time.Now().Add(ttl)}
}

func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.expiration.Before(oldest) {
			oldestKey = key
			oldest = item.expiration
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
