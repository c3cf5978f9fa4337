package repository

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/observability"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
)

// CounterRepository manages the sharded allocation counters. Callers must
// hold the shard's lock around Increment; the repository itself only
// guards against store corruption.
type CounterRepository interface {
	// Increment advances the shard's counter by one and returns the new
	// value. A counter that fails to parse or has moved backwards is
	// treated as corrupt and reset to base before incrementing.
	Increment(ctx context.Context, shard int) (int64, error)
	LockName(shard int) string
}

type counterRepository struct {
	store   persistence.Store
	base    int64
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCounterRepository instantiates the repository with the configured base.
func NewCounterRepository(store persistence.Store, base int64, logger *zap.Logger, metrics *observability.Metrics) CounterRepository {
	return &counterRepository{store: store, base: base, logger: logger, metrics: metrics}
}

func (r *counterRepository) Increment(ctx context.Context, shard int) (int64, error) {
	key := fmt.Sprintf("%s%d", CounterKeyPrefix, shard)

	current := r.base
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		parsed, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || parsed < r.base {
			r.logger.Warn("counter corrupt, resetting to base",
				zap.String("key", key),
				zap.String("raw", raw),
				zap.Int64("base", r.base))
			r.metrics.RecordCorruptionReset()
		} else {
			current = parsed
		}
	}

	next := current + 1
	if next <= current {
		return 0, fmt.Errorf("counter %s did not advance: %d -> %d", key, current, next)
	}
	if err := r.store.Set(ctx, key, strconv.FormatInt(next, 10)); err != nil {
		return 0, err
	}
	return next, nil
}

func (r *counterRepository) LockName(shard int) string {
	return fmt.Sprintf("%s%d", CounterLockPrefix, shard)
}
