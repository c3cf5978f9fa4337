package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/config"
	"github.com/spec-kit/support-ticket-core/internal/observability"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
	"github.com/spec-kit/support-ticket-core/internal/repository"
	"github.com/spec-kit/support-ticket-core/pkg/retry"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

// AllocatorService produces collision-free ticket identifiers from sharded,
// lock-protected counters. When the lock or the store misbehaves past the
// retry budget it degrades to a wall-clock id instead of failing the create.
type AllocatorService struct {
	counters repository.CounterRepository
	locker   persistence.Locker
	cfg      config.AllocatorConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewAllocatorService constructs the allocator.
func NewAllocatorService(counters repository.CounterRepository, locker persistence.Locker, cfg config.AllocatorConfig, logger *zap.Logger, metrics *observability.Metrics) *AllocatorService {
	return &AllocatorService{
		counters: counters,
		locker:   locker,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Allocate returns a new ticket id and whether it came from the degraded
// fallback path. Primary ids look like 20260823-3010042: a date prefix, the
// shard digit, then the zero-padded shard counter.
func (s *AllocatorService) Allocate(ctx context.Context) (string, bool) {
	shard := rand.Intn(s.cfg.ShardCount)

	id, err := retry.DoWithResult(ctx, retry.Config{
		MaxRetries:      s.cfg.MaxRetries,
		InitialInterval: s.cfg.BackoffBase(),
		MaxInterval:     s.cfg.LockWait(),
		Multiplier:      2.0,
	}, func() (string, error) {
		return s.allocateFromShard(ctx, shard)
	})
	if err == nil {
		s.metrics.RecordAllocation(false)
		return id, false
	}

	fallback := s.fallbackID()
	s.logger.Warn("degraded id allocation",
		zap.Int("shard", shard),
		zap.String("id", fallback),
		zap.Error(apperrors.NewAllocationExhausted(err)))
	s.metrics.RecordAllocation(true)
	return fallback, true
}

func (s *AllocatorService) allocateFromShard(ctx context.Context, shard int) (string, error) {
	release, err := s.locker.Acquire(ctx, s.counters.LockName(shard), s.cfg.LockWait())
	if err != nil {
		s.metrics.RecordLockTimeout()
		return "", err
	}
	defer release()

	counter, err := s.counters.Increment(ctx, shard)
	if err != nil {
		return "", err
	}

	datePrefix := time.Now().UTC().Format("20060102")
	return fmt.Sprintf("%s-%d%0*d", datePrefix, shard, s.cfg.CounterPadding, counter), nil
}

// fallbackID builds a best-effort unique id from wall-clock time plus a
// random suffix. Collisions are possible in principle but require two
// degraded allocations in the same millisecond drawing the same suffix.
func (s *AllocatorService) fallbackID() string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("FALLBACK-%d-%s", time.Now().UnixMilli(), suffix)
}
