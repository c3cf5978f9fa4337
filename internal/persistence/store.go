package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrValueTooLarge is returned when a value exceeds the per-key size limit.
var ErrValueTooLarge = errors.New("value exceeds per-key size limit")

// Store is the key-value adapter all persistence goes through. The backing
// store has no transactions; visibility across invocations is eventual.
// Implementations must enforce the per-key value size limit.
type Store interface {
	// Get returns the value for key. The second result is false when the
	// key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key with the given prefix, sorted ascending.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client        *redis.Client
	maxValueBytes int
}

// NewRedisStore builds a Store over the shared Redis connection.
func NewRedisStore(r *Redis, maxValueBytes int) *RedisStore {
	return &RedisStore{client: r.Client, maxValueBytes: maxValueBytes}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return fmt.Errorf("set %q (%d bytes): %w", key, len(value), ErrValueTooLarge)
	}
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	data          map[string]string
	maxValueBytes int
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore(maxValueBytes int) *MemoryStore {
	return &MemoryStore{data: make(map[string]string), maxValueBytes: maxValueBytes}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return fmt.Errorf("set %q (%d bytes): %w", key, len(value), ErrValueTooLarge)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key := range s.data {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
