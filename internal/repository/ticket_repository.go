package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/domain"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

// TicketRepository encapsulates ticket persistence over the KV store.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update persists a mutated ticket. The caller must have incremented
	// Version by exactly one; the write is rejected with VERSION_CONFLICT
	// when the stored version no longer matches Version-1.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByThread(ctx context.Context, threadID string) (*domain.Ticket, error)
	MapThread(ctx context.Context, threadID, ticketID string) error
	// ListIDs returns every ticket id in the store, sorted descending.
	// Ids embed their creation date, so descending order approximates
	// newest-first.
	ListIDs(ctx context.Context) ([]string, error)
}

type ticketRepository struct {
	store  persistence.Store
	logger *zap.Logger
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(store persistence.Store, logger *zap.Logger) TicketRepository {
	return &ticketRepository{store: store, logger: logger}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	_, exists, err := r.store.Get(ctx, TicketKey(ticket.ID))
	if err != nil {
		return err
	}
	if exists {
		return apperrors.NewVersionConflict(ticket.ID, 0, ticket.Version)
	}
	if ticket.Version == 0 {
		ticket.Version = 1
	}
	return r.save(ctx, ticket)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	current, err := r.GetByID(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if current.Version != ticket.Version-1 {
		return apperrors.NewVersionConflict(ticket.ID, ticket.Version-1, current.Version)
	}
	return r.save(ctx, ticket)
}

func (r *ticketRepository) save(ctx context.Context, ticket *domain.Ticket) error {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	err = r.store.Set(ctx, TicketKey(ticket.ID), string(raw))
	if err == nil {
		return nil
	}
	for isTooLarge(err) && len(ticket.History) > 1 {
		// History is the only unbounded part of the record. Drop the
		// oldest half until the entry fits the per-key limit.
		ticket.History = ticket.History[len(ticket.History)/2:]
		raw, merr := json.Marshal(ticket)
		if merr != nil {
			return merr
		}
		r.logger.Warn("trimmed ticket history to fit per-key limit",
			zap.String("ticket_id", ticket.ID),
			zap.Int("history_len", len(ticket.History)))
		err = r.store.Set(ctx, TicketKey(ticket.ID), string(raw))
	}
	return err
}

func isTooLarge(err error) bool {
	return errors.Is(err, persistence.ErrValueTooLarge)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	raw, ok, err := r.store.Get(ctx, TicketKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	var ticket domain.Ticket
	if err := json.Unmarshal([]byte(raw), &ticket); err != nil {
		return nil, apperrors.NewStoreCorruption(TicketKey(id), err)
	}
	return &ticket, nil
}

func (r *ticketRepository) GetByThread(ctx context.Context, threadID string) (*domain.Ticket, error) {
	id, ok, err := r.store.Get(ctx, ThreadKey(threadID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"thread_id": threadID})
	}
	return r.GetByID(ctx, id)
}

func (r *ticketRepository) MapThread(ctx context.Context, threadID, ticketID string) error {
	return r.store.Set(ctx, ThreadKey(threadID), ticketID)
}

func (r *ticketRepository) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, TicketKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	// Keys come back ascending; reverse for newest-first.
	for i := len(keys) - 1; i >= 0; i-- {
		ids = append(ids, strings.TrimPrefix(keys[i], TicketKeyPrefix))
	}
	return ids, nil
}
