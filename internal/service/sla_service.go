package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/config"
	"github.com/spec-kit/support-ticket-core/internal/domain"
	"github.com/spec-kit/support-ticket-core/internal/events"
	"github.com/spec-kit/support-ticket-core/internal/observability"
	"github.com/spec-kit/support-ticket-core/internal/repository"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

// SLAService computes response/resolution deadlines from ticket priority and
// flags breaches once a deadline passes without the corresponding event.
type SLAService struct {
	cfg        config.SLAConfig
	tickets    repository.TicketRepository
	index      repository.IndexRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewSLAService constructs the service.
func NewSLAService(cfg config.SLAConfig, tickets repository.TicketRepository, index repository.IndexRepository, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *SLAService {
	return &SLAService{
		cfg:        cfg,
		tickets:    tickets,
		index:      index,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// ComputeTargets derives both SLA deadlines from priority and creation time.
func (s *SLAService) ComputeTargets(priority domain.Priority, createdAt time.Time) (response, resolution time.Time) {
	responseMinutes, resolutionMinutes := s.minutes(priority)
	return createdAt.Add(time.Duration(responseMinutes) * time.Minute),
		createdAt.Add(time.Duration(resolutionMinutes) * time.Minute)
}

func (s *SLAService) minutes(priority domain.Priority) (int, int) {
	switch priority {
	case domain.PriorityUrgent:
		return s.cfg.UrgentResponseMinutes, s.cfg.UrgentResolutionMinutes
	case domain.PriorityHigh:
		return s.cfg.HighResponseMinutes, s.cfg.HighResolutionMinutes
	case domain.PriorityLow:
		return s.cfg.LowResponseMinutes, s.cfg.LowResolutionMinutes
	default:
		return s.cfg.MediumResponseMinutes, s.cfg.MediumResolutionMinutes
	}
}

// Evaluate checks the ticket's deadlines against now, mutating the ticket
// when a breach is detected. A breach is monotonic: once set it stays until
// a reopen recomputes targets. Returns whether the ticket changed; the
// caller publishes the breach event once the mutation is persisted.
func (s *SLAService) Evaluate(ctx context.Context, ticket *domain.Ticket, now time.Time) bool {
	if ticket.Breached {
		return false
	}

	var reason string
	var target time.Time
	switch {
	case !ticket.HasResponse() && ticket.IsOpen() && now.After(ticket.ResponseTarget):
		reason = domain.BreachReasonResponse
		target = ticket.ResponseTarget
	case ticket.IsOpen() && now.After(ticket.ResolutionTarget):
		reason = domain.BreachReasonResolution
		target = ticket.ResolutionTarget
	default:
		return false
	}

	ticket.Breached = true
	ticket.BreachReason = reason
	s.metrics.RecordSLABreach(reason)
	s.logger.Info("sla breach",
		zap.String("ticket_id", ticket.ID),
		zap.String("reason", reason),
		zap.Time("target", target))
	return true
}

// Sweep walks open tickets through the index and evaluates each against now.
// It stops early once ctx expires, leaving the remainder for the next run.
func (s *SLAService) Sweep(ctx context.Context, now time.Time) (evaluated, breached int, err error) {
	shards, err := s.index.Shards(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, shard := range shards {
		entries, err := s.index.Entries(ctx, shard.Key)
		if err != nil {
			return evaluated, breached, err
		}
		for _, entry := range entries {
			if ctx.Err() != nil {
				s.logger.Info("sla sweep budget expired",
					zap.Int("evaluated", evaluated), zap.Int("breached", breached))
				return evaluated, breached, nil
			}
			ticket, err := s.tickets.GetByID(ctx, entry.ID)
			if err != nil {
				if apperrors.IsCode(err, apperrors.CodeNotFound) {
					continue
				}
				return evaluated, breached, err
			}
			if !ticket.IsOpen() || ticket.Breached {
				continue
			}
			evaluated++
			if !s.Evaluate(ctx, ticket, now) {
				continue
			}
			ticket.History = append(ticket.History, domain.HistoryEntry{
				Timestamp: now,
				Action:    domain.ActionSLABreach,
				Actor:     "system",
				Details:   map[string]any{"reason": ticket.BreachReason},
			})
			ticket.UpdatedAt = now
			ticket.Version++
			ticket.LastModifiedBy = "system"
			if err := s.tickets.Update(ctx, ticket); err != nil {
				if apperrors.IsCode(err, apperrors.CodeVersionConflict) {
					// Someone else mutated the ticket mid-sweep; their
					// write already re-ran evaluation.
					s.metrics.RecordVersionConflict()
					continue
				}
				return evaluated, breached, err
			}
			s.publishBreach(ctx, ticket)
			breached++
		}
	}
	return evaluated, breached, nil
}

// publishBreach emits the sla_breach event. Callers invoke it only after the
// breached ticket was saved, so consumers never see a breach the store
// rejected.
func (s *SLAService) publishBreach(ctx context.Context, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	target := ticket.ResolutionTarget
	if ticket.BreachReason == domain.BreachReasonResponse {
		target = ticket.ResponseTarget
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLABreach,
		TicketID:  ticket.ID,
		Actor:     "system",
		Timestamp: time.Now(),
		Payload: events.SLABreachPayload{
			Priority: ticket.Priority,
			Reason:   ticket.BreachReason,
			Target:   target,
		},
	})
}
