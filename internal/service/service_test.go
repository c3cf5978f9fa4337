package service

import (
	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/config"
	"github.com/spec-kit/support-ticket-core/internal/events"
	"github.com/spec-kit/support-ticket-core/internal/observability"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
	"github.com/spec-kit/support-ticket-core/internal/repository"
)

// testStack wires the full service graph over in-memory adapters.
type testStack struct {
	store      *persistence.MemoryStore
	tickets    repository.TicketRepository
	index      repository.IndexRepository
	allocator  *AllocatorService
	sla        *SLAService
	lifecycle  *LifecycleService
	svc        *TicketService
	dispatcher events.Dispatcher
}

func testSLAConfig() config.SLAConfig {
	return config.SLAConfig{
		UrgentResponseMinutes:   15,
		UrgentResolutionMinutes: 240,
		HighResponseMinutes:     60,
		HighResolutionMinutes:   480,
		MediumResponseMinutes:   240,
		MediumResolutionMinutes: 1440,
		LowResponseMinutes:      480,
		LowResolutionMinutes:    2880,
	}
}

func testAllocatorConfig() config.AllocatorConfig {
	return config.AllocatorConfig{
		ShardCount:         10,
		CounterBase:        10000,
		LockWaitSeconds:    1,
		MaxRetries:         3,
		BackoffBaseMillis:  1,
		CounterPadding:     6,
		LockTTLSeconds:     30,
		LockPollIntervalMS: 5,
	}
}

func newTestStack(locker persistence.Locker) *testStack {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := persistence.NewMemoryStore(0)
	if locker == nil {
		locker = persistence.NewMemoryLocker()
	}
	dispatcher := events.NewInMemoryDispatcher(logger)

	tickets := repository.NewTicketRepository(store, logger)
	counters := repository.NewCounterRepository(store, testAllocatorConfig().CounterBase, logger, metrics)
	index := repository.NewIndexRepository(store, 500, logger, metrics)

	allocator := NewAllocatorService(counters, locker, testAllocatorConfig(), logger, metrics)
	sla := NewSLAService(testSLAConfig(), tickets, index, dispatcher, logger, metrics)
	lifecycle := NewLifecycleService(tickets, sla, logger)

	svc := NewTicketService(TicketDependencies{
		TicketRepo: tickets,
		IndexRepo:  index,
		Allocator:  allocator,
		Lifecycle:  lifecycle,
		SLA:        sla,
		Cache:      persistence.NewMemoryCache(128),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	return &testStack{
		store:      store,
		tickets:    tickets,
		index:      index,
		allocator:  allocator,
		sla:        sla,
		lifecycle:  lifecycle,
		svc:        svc,
		dispatcher: dispatcher,
	}
}
