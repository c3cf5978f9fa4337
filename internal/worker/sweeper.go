package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/config"
	"github.com/spec-kit/support-ticket-core/internal/repository"
	"github.com/spec-kit/support-ticket-core/internal/service"
)

// Sweeper runs the scheduled SLA breach sweep and index retention cleanup.
// Each run is time-boxed; work left over when the budget expires waits for
// the next scheduled invocation.
type Sweeper struct {
	sla    *service.SLAService
	index  repository.IndexRepository
	cfg    config.Config
	logger *zap.Logger
}

// NewSweeper constructs the sweeper.
func NewSweeper(sla *service.SLAService, index repository.IndexRepository, cfg config.Config, logger *zap.Logger) *Sweeper {
	return &Sweeper{sla: sla, index: index, cfg: cfg, logger: logger}
}

// Register adds the sweep jobs to the scheduler.
func (w *Sweeper) Register(scheduler *cron.Cron) error {
	if _, err := scheduler.AddFunc(w.cfg.Worker.SLASweepSpec, w.RunSLASweep); err != nil {
		return err
	}
	if _, err := scheduler.AddFunc(w.cfg.Worker.RetentionSpec, w.RunRetentionCleanup); err != nil {
		return err
	}
	return nil
}

// RunSLASweep evaluates open tickets against their SLA deadlines.
func (w *Sweeper) RunSLASweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Worker.InvocationBudget())
	defer cancel()

	start := time.Now()
	evaluated, breached, err := w.sla.Sweep(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error("sla sweep failed", zap.Error(err))
		return
	}
	w.logger.Info("sla sweep finished",
		zap.Int("evaluated", evaluated),
		zap.Int("breached", breached),
		zap.Duration("elapsed", time.Since(start)))
}

// RunRetentionCleanup deletes index shards past the retention horizon.
func (w *Sweeper) RunRetentionCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Worker.InvocationBudget())
	defer cancel()

	removed, err := w.index.Cleanup(ctx, w.cfg.Index.RetentionHorizon())
	if err != nil {
		w.logger.Error("index retention cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		w.logger.Info("index retention cleanup finished", zap.Int("removed", removed))
	}
}
