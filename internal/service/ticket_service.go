package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-core/internal/domain"
	"github.com/spec-kit/support-ticket-core/internal/events"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
	"github.com/spec-kit/support-ticket-core/internal/repository"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

const (
	ticketCachePrefix = "cache:ticket:"
	ticketCacheTTL    = 5 * time.Minute

	// searchFetchBatch bounds how many full records are resident at once
	// while scanning; listing never materializes the whole population.
	searchFetchBatch = 50

	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateOptions carries classification supplied by the caller (usually the
// AI analysis collaborator) alongside the inbound email.
type CreateOptions struct {
	Category string
	Priority domain.Priority
	Tags     []string
	Actor    string
}

// SearchFilters narrows a ticket search.
type SearchFilters struct {
	Status   *domain.Status
	Priority *domain.Priority
	Category *string
	From     *time.Time
	To       *time.Time
	SortBy   string // created_at | updated_at | priority; default created_at
	SortAsc  bool
}

// SearchResult is one page of matching tickets.
type SearchResult struct {
	Tickets  []domain.Ticket `json:"tickets"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// Statistics aggregates ticket counts and SLA compliance over a date range.
type Statistics struct {
	Total                    int                     `json:"total"`
	ByStatus                 map[domain.Status]int   `json:"by_status"`
	ByPriority               map[domain.Priority]int `json:"by_priority"`
	ByCategory               map[string]int          `json:"by_category"`
	AvgResponseTimeMinutes   float64                 `json:"avg_response_time_minutes"`
	AvgResolutionTimeMinutes float64                 `json:"avg_resolution_time_minutes"`
	SLACompliancePercent     float64                 `json:"sla_compliance_percent"`
}

// TicketService is the public facade composing allocation, lifecycle, SLA
// and the sharded index.
type TicketService struct {
	tickets    repository.TicketRepository
	index      repository.IndexRepository
	allocator  *AllocatorService
	lifecycle  *LifecycleService
	sla        *SLAService
	cache      persistence.Cache
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the facade.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	IndexRepo  repository.IndexRepository
	Allocator  *AllocatorService
	Lifecycle  *LifecycleService
	SLA        *SLAService
	Cache      persistence.Cache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the facade.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		index:      deps.IndexRepo,
		allocator:  deps.Allocator,
		lifecycle:  deps.Lifecycle,
		sla:        deps.SLA,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Create opens a ticket for an inbound email. A thread that already has a
// ticket gets a follow-up recorded on it instead of a duplicate; a failed
// create never silently no-ops.
func (s *TicketService) Create(ctx context.Context, email domain.InboundEmail, opts CreateOptions) (*domain.Ticket, error) {
	if strings.TrimSpace(email.ThreadID) == "" {
		return nil, apperrors.NewValidationError("thread_id required", nil)
	}

	if existing, err := s.tickets.GetByThread(ctx, email.ThreadID); err == nil {
		return s.recordFollowUp(ctx, existing, opts.Actor)
	} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil, err
	}

	id, degraded := s.allocator.Allocate(ctx)

	createdAt := email.Date.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	priority := opts.Priority
	if !domain.ValidPriority(priority) {
		priority = domain.PriorityMedium
	}
	category := opts.Category
	if category == "" {
		category = "general"
	}
	actor := opts.Actor
	if actor == "" {
		actor = "system"
	}

	responseTarget, resolutionTarget := s.sla.ComputeTargets(priority, createdAt)

	ticket := &domain.Ticket{
		ID:                   id,
		ThreadID:             email.ThreadID,
		Subject:              strings.TrimSpace(email.Subject),
		From:                 strings.TrimSpace(email.From),
		Category:             category,
		Status:               domain.StatusNew,
		Priority:             priority,
		Tags:                 opts.Tags,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
		CustomerInteractions: 1,
		ResponseTarget:       responseTarget,
		ResolutionTarget:     resolutionTarget,
		History: []domain.HistoryEntry{{
			Timestamp: createdAt,
			Action:    domain.ActionCreated,
			Actor:     actor,
			Details:   map[string]any{"thread_id": email.ThreadID, "degraded_id": degraded},
		}},
		Version:        1,
		LastModifiedBy: actor,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.tickets.MapThread(ctx, email.ThreadID, ticket.ID); err != nil {
		return nil, err
	}
	if err := s.index.Append(ctx, ticket.ID, ticket.CreatedAt); err != nil {
		// The ticket exists; a missing index pointer only hurts listing.
		s.logger.Error("index append failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			ThreadID:   ticket.ThreadID,
			Priority:   ticket.Priority,
			Category:   ticket.Category,
			Subject:    ticket.Subject,
			DegradedID: degraded,
		},
	})
	return ticket, nil
}

func (s *TicketService) recordFollowUp(ctx context.Context, ticket *domain.Ticket, actor string) (*domain.Ticket, error) {
	if actor == "" {
		actor = "customer"
	}
	now := time.Now().UTC()
	ticket.CustomerInteractions++
	ticket.History = append(ticket.History, domain.HistoryEntry{
		Timestamp: now,
		Action:    domain.ActionCustomerFollowUp,
		Actor:     actor,
	})
	ticket.UpdatedAt = now
	ticket.Version++
	ticket.LastModifiedBy = actor

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ticket.ID)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketUpdatedPayload{
			Changes: map[string]any{
				"follow_up":             true,
				"customer_interactions": ticket.CustomerInteractions,
			},
			Version: ticket.Version,
		},
	})
	return ticket, nil
}

// Update applies a mutation through the lifecycle engine.
func (s *TicketService) Update(ctx context.Context, id string, updates UpdateInput, actor string) (*domain.Ticket, error) {
	before, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ticket, err := s.lifecycle.Update(ctx, id, updates, actor)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	if ticket.Version > before.Version {
		payload := events.TicketUpdatedPayload{Version: ticket.Version}
		if before.Status != ticket.Status {
			payload.OldStatus = before.Status
			payload.NewStatus = ticket.Status
		}
		s.publish(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload:  payload,
		})
	}
	return ticket, nil
}

// RecordResponse stamps the first agent response on a ticket.
func (s *TicketService) RecordResponse(ctx context.Context, id, actor string) (*domain.Ticket, error) {
	ticket, err := s.lifecycle.RecordResponse(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketUpdatedPayload{
			Changes: map[string]any{"agent_interactions": ticket.AgentInteractions},
			Version: ticket.Version,
		},
	})
	return ticket, nil
}

// Get fetches one ticket, cache-aside.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	if raw, ok := s.cache.Get(ctx, ticketCachePrefix+id); ok {
		var ticket domain.Ticket
		if err := json.Unmarshal([]byte(raw), &ticket); err == nil {
			return &ticket, nil
		}
		s.cache.Delete(ctx, ticketCachePrefix+id)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(ticket); err == nil {
		s.cache.Set(ctx, ticketCachePrefix+ticket.ID, string(raw), ticketCacheTTL)
	}
	return ticket, nil
}

// GetByThread resolves the stable thread mapping to its ticket.
func (s *TicketService) GetByThread(ctx context.Context, threadID string) (*domain.Ticket, error) {
	return s.tickets.GetByThread(ctx, threadID)
}

// List returns one page of tickets, newest first. Only the requested page's
// full records are fetched.
func (s *TicketService) List(ctx context.Context, page, pageSize int) (*SearchResult, error) {
	page, pageSize = normalizePage(page, pageSize)
	ids, err := s.tickets.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	start := page * pageSize
	end := start + pageSize
	if start > len(ids) {
		start = len(ids)
	}
	if end > len(ids) {
		end = len(ids)
	}

	tickets := make([]domain.Ticket, 0, end-start)
	for _, id := range ids[start:end] {
		ticket, err := s.tickets.GetByID(ctx, id)
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeNotFound) {
				continue
			}
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return &SearchResult{Tickets: tickets, Total: len(ids), Page: page, PageSize: pageSize}, nil
}

// Search scans tickets in bounded windows, applies substring/equality
// filters, sorts by the requested field and paginates the matches.
func (s *TicketService) Search(ctx context.Context, query string, filters SearchFilters, page, pageSize int) (*SearchResult, error) {
	page, pageSize = normalizePage(page, pageSize)
	ids, err := s.tickets.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var matches []domain.Ticket
	for start := 0; start < len(ids); start += searchFetchBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + searchFetchBatch
		if end > len(ids) {
			end = len(ids)
		}
		for _, id := range ids[start:end] {
			ticket, err := s.tickets.GetByID(ctx, id)
			if err != nil {
				if apperrors.IsCode(err, apperrors.CodeNotFound) {
					continue
				}
				return nil, err
			}
			if matchesQuery(ticket, query) && matchesFilters(ticket, filters) {
				matches = append(matches, *ticket)
			}
		}
	}

	sortTickets(matches, filters.SortBy, filters.SortAsc)

	total := len(matches)
	start := page * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return &SearchResult{Tickets: matches[start:end], Total: total, Page: page, PageSize: pageSize}, nil
}

// Statistics aggregates over the retained shard window for the date range.
func (s *TicketService) Statistics(ctx context.Context, from, to time.Time) (*Statistics, error) {
	shards, err := s.index.Shards(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		ByStatus:   make(map[domain.Status]int),
		ByPriority: make(map[domain.Priority]int),
		ByCategory: make(map[string]int),
	}
	var responseSum, resolutionSum float64
	var responseCount, resolutionCount, breachedCount int

	for _, shard := range shards {
		day := strings.TrimPrefix(shard.Key, repository.IndexShardKeyPrefix)
		if !shardInRange(day, from, to) {
			continue
		}
		entries, err := s.index.Entries(ctx, shard.Key)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ticket, err := s.tickets.GetByID(ctx, entry.ID)
			if err != nil {
				if apperrors.IsCode(err, apperrors.CodeNotFound) {
					continue
				}
				return nil, err
			}
			if !from.IsZero() && ticket.CreatedAt.Before(from) {
				continue
			}
			if !to.IsZero() && ticket.CreatedAt.After(to) {
				continue
			}
			stats.Total++
			stats.ByStatus[ticket.Status]++
			stats.ByPriority[ticket.Priority]++
			stats.ByCategory[ticket.Category]++
			if ticket.ResponseTimeMinutes != nil {
				responseSum += float64(*ticket.ResponseTimeMinutes)
				responseCount++
			}
			if ticket.ResolutionTimeMinutes != nil {
				resolutionSum += float64(*ticket.ResolutionTimeMinutes)
				resolutionCount++
			}
			if ticket.Breached {
				breachedCount++
			}
		}
	}

	if responseCount > 0 {
		stats.AvgResponseTimeMinutes = responseSum / float64(responseCount)
	}
	if resolutionCount > 0 {
		stats.AvgResolutionTimeMinutes = resolutionSum / float64(resolutionCount)
	}
	if stats.Total > 0 {
		stats.SLACompliancePercent = 100 * float64(stats.Total-breachedCount) / float64(stats.Total)
	}
	return stats, nil
}

func (s *TicketService) invalidate(ctx context.Context, id string) {
	s.cache.Delete(ctx, ticketCachePrefix+id)
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func matchesQuery(ticket *domain.Ticket, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(ticket.ID), query) ||
		strings.Contains(strings.ToLower(ticket.Subject), query) ||
		strings.Contains(strings.ToLower(ticket.From), query) {
		return true
	}
	for _, tag := range ticket.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func matchesFilters(ticket *domain.Ticket, filters SearchFilters) bool {
	if filters.Status != nil && ticket.Status != *filters.Status {
		return false
	}
	if filters.Priority != nil && ticket.Priority != *filters.Priority {
		return false
	}
	if filters.Category != nil && ticket.Category != *filters.Category {
		return false
	}
	if filters.From != nil && ticket.CreatedAt.Before(*filters.From) {
		return false
	}
	if filters.To != nil && ticket.CreatedAt.After(*filters.To) {
		return false
	}
	return true
}

var priorityRank = map[domain.Priority]int{
	domain.PriorityUrgent: 0,
	domain.PriorityHigh:   1,
	domain.PriorityMedium: 2,
	domain.PriorityLow:    3,
}

func sortTickets(tickets []domain.Ticket, sortBy string, asc bool) {
	less := func(i, j int) bool {
		switch sortBy {
		case "updated_at":
			return tickets[i].UpdatedAt.Before(tickets[j].UpdatedAt)
		case "priority":
			return priorityRank[tickets[i].Priority] < priorityRank[tickets[j].Priority]
		default:
			return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
		}
	}
	if asc {
		sort.SliceStable(tickets, less)
		return
	}
	sort.SliceStable(tickets, func(i, j int) bool { return less(j, i) })
}

func shardInRange(day string, from, to time.Time) bool {
	if !from.IsZero() && day < from.UTC().Format(repository.ShardDateFormat) {
		return false
	}
	if !to.IsZero() && day > to.UTC().Format(repository.ShardDateFormat) {
		return false
	}
	return true
}
