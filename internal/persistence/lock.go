package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

// Locker hands out named, process-wide mutual-exclusion locks. Acquire blocks
// up to wait; on success the returned function releases the lock.
type Locker interface {
	Acquire(ctx context.Context, name string, wait time.Duration) (release func(), err error)
}

// RedisLocker implements Locker with SET NX PX and bounded polling.
type RedisLocker struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisLocker builds a Locker over the shared Redis connection. ttl must
// comfortably exceed the longest critical section so an abandoned lock
// cannot wedge allocation forever.
func NewRedisLocker(r *Redis, ttl, pollInterval time.Duration) *RedisLocker {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &RedisLocker{client: r.Client, ttl: ttl, pollInterval: pollInterval}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, wait time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(name, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, apperrors.NewLockTimeout(name)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// release deletes the lock only when the token still matches. The
// get-compare-delete window is tolerable because the lock TTL dwarfs the
// critical section and counter updates validate monotonicity regardless.
func (l *RedisLocker) release(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	current, err := l.client.Get(ctx, name).Result()
	if err != nil || current != token {
		return
	}
	_ = l.client.Del(ctx, name).Err()
}

// MemoryLocker implements Locker with in-process mutexes, for tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryLocker builds an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, name string, wait time.Duration) (func(), error) {
	l.mu.Lock()
	named, ok := l.locks[name]
	if !ok {
		named = &sync.Mutex{}
		l.locks[name] = named
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		named.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return named.Unlock, nil
	case <-ctx.Done():
		go func() {
			<-acquired
			named.Unlock()
		}()
		return nil, ctx.Err()
	case <-time.After(wait):
		go func() {
			<-acquired
			named.Unlock()
		}()
		return nil, apperrors.NewLockTimeout(name)
	}
}

// FailingLocker always times out; tests use it to force degraded allocation.
type FailingLocker struct{}

func (FailingLocker) Acquire(ctx context.Context, name string, wait time.Duration) (func(), error) {
	return nil, apperrors.NewLockTimeout(name)
}
