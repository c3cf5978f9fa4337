package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/domain"
	"github.com/spec-kit/support-ticket-core/internal/repository"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

// UpdateInput describes a requested ticket mutation. Nil pointers leave the
// corresponding field untouched.
type UpdateInput struct {
	Status   *domain.Status
	Priority *domain.Priority
	Category *string
	Tags     []string
}

// LifecycleService validates and applies status transitions, maintains
// timestamps and derived metrics, and re-runs SLA evaluation after every
// mutation.
type LifecycleService struct {
	tickets repository.TicketRepository
	sla     *SLAService
	logger  *zap.Logger
}

// NewLifecycleService constructs the engine.
func NewLifecycleService(tickets repository.TicketRepository, sla *SLAService, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{tickets: tickets, sla: sla, logger: logger}
}

// Update applies the requested changes to the ticket. Illegal status
// transitions fail with INVALID_TRANSITION and leave the ticket untouched;
// stale overwrites fail with VERSION_CONFLICT.
func (s *LifecycleService) Update(ctx context.Context, id string, updates UpdateInput, actor string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	changes := map[string]any{}

	if updates.Status != nil && *updates.Status != ticket.Status {
		next := *updates.Status
		if !domain.ValidStatus(next) || !domain.IsValidTransition(ticket.Status, next) {
			return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(next))
		}
		changes["status"] = map[string]any{"from": ticket.Status, "to": next}
		s.applyTransition(ticket, next, now)
	}

	if updates.Priority != nil && *updates.Priority != ticket.Priority {
		if !domain.ValidPriority(*updates.Priority) {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *updates.Priority})
		}
		changes["priority"] = map[string]any{"from": ticket.Priority, "to": *updates.Priority}
		ticket.Priority = *updates.Priority
	}

	if updates.Category != nil && *updates.Category != ticket.Category {
		changes["category"] = map[string]any{"from": ticket.Category, "to": *updates.Category}
		ticket.Category = *updates.Category
	}

	if updates.Tags != nil {
		changes["tags"] = map[string]any{"to": updates.Tags}
		ticket.Tags = updates.Tags
	}

	if len(changes) == 0 {
		return ticket, nil
	}

	action := domain.ActionUpdated
	if _, ok := changes["status"]; ok {
		action = domain.ActionStatusChanged
	}
	ticket.History = append(ticket.History, domain.HistoryEntry{
		Timestamp: now,
		Action:    action,
		Actor:     actor,
		Details:   changes,
	})
	ticket.UpdatedAt = now
	ticket.Version++
	ticket.LastModifiedBy = actor

	breached := s.sla.Evaluate(ctx, ticket, now)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if breached {
		s.sla.publishBreach(ctx, ticket)
	}
	return ticket, nil
}

// RecordResponse stamps the first agent response on the ticket and derives
// the response time metric. Later calls only bump the interaction counter.
func (s *LifecycleService) RecordResponse(ctx context.Context, id, actor string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ticket.AgentInteractions++
	if ticket.FirstResponseAt == nil {
		stamp := now
		ticket.FirstResponseAt = &stamp
		minutes := int(now.Sub(ticket.CreatedAt).Minutes())
		ticket.ResponseTimeMinutes = &minutes
	}

	ticket.History = append(ticket.History, domain.HistoryEntry{
		Timestamp: now,
		Action:    domain.ActionResponseRecorded,
		Actor:     actor,
	})
	ticket.UpdatedAt = now
	ticket.Version++
	ticket.LastModifiedBy = actor

	breached := s.sla.Evaluate(ctx, ticket, now)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if breached {
		s.sla.publishBreach(ctx, ticket)
	}
	return ticket, nil
}

// applyTransition performs the per-target-state side effects.
func (s *LifecycleService) applyTransition(ticket *domain.Ticket, next domain.Status, now time.Time) {
	switch next {
	case domain.StatusResolved:
		stamp := now
		ticket.ResolvedAt = &stamp
		minutes := int(now.Sub(ticket.CreatedAt).Minutes())
		ticket.ResolutionTimeMinutes = &minutes
	case domain.StatusClosed:
		stamp := now
		ticket.ClosedAt = &stamp
	case domain.StatusReopened:
		ticket.ReopenedCount++
		ticket.ResolvedAt = nil
		ticket.ClosedAt = nil
		ticket.ResolutionTimeMinutes = nil
		// Fresh targets; this is the only path that clears a breach.
		ticket.ResponseTarget, ticket.ResolutionTarget = s.sla.ComputeTargets(ticket.Priority, now)
		ticket.Breached = false
		ticket.BreachReason = ""
	}
	ticket.Status = next
}
