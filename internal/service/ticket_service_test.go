package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spec-kit/support-ticket-core/internal/domain"
	"github.com/spec-kit/support-ticket-core/internal/events"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
	"github.com/spec-kit/support-ticket-core/internal/repository"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

func TestCreateTicket(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	var created []events.Event
	stack.dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e)
		return nil
	})

	ticket, err := stack.svc.Create(ctx, domain.InboundEmail{
		ThreadID: "thread-1",
		From:     "Customer@Example.com ",
		Subject:  " Refund request ",
	}, CreateOptions{Priority: domain.PriorityUrgent, Category: "billing", Tags: []string{"refund"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !primaryIDPattern.MatchString(ticket.ID) {
		t.Fatalf("id = %q", ticket.ID)
	}
	if ticket.Status != domain.StatusNew || ticket.Version != 1 || ticket.CustomerInteractions != 1 {
		t.Fatalf("ticket = %+v", ticket)
	}
	if ticket.Subject != "Refund request" {
		t.Fatalf("subject = %q, want trimmed", ticket.Subject)
	}
	if want := ticket.CreatedAt.Add(15 * time.Minute); !ticket.ResponseTarget.Equal(want) {
		t.Fatalf("response target = %v, want %v", ticket.ResponseTarget, want)
	}
	if want := ticket.CreatedAt.Add(240 * time.Minute); !ticket.ResolutionTarget.Equal(want) {
		t.Fatalf("resolution target = %v, want %v", ticket.ResolutionTarget, want)
	}
	if len(ticket.History) != 1 || ticket.History[0].Action != domain.ActionCreated {
		t.Fatalf("history = %+v", ticket.History)
	}

	byThread, err := stack.svc.GetByThread(ctx, "thread-1")
	if err != nil {
		t.Fatalf("get by thread: %v", err)
	}
	if byThread.ID != ticket.ID {
		t.Fatalf("thread maps to %s, want %s", byThread.ID, ticket.ID)
	}

	shards, err := stack.index.Shards(ctx)
	if err != nil {
		t.Fatalf("shards: %v", err)
	}
	if len(shards) != 1 || shards[0].EntryCount != 1 {
		t.Fatalf("shards = %+v", shards)
	}
	if len(created) != 1 || created[0].TicketID != ticket.ID {
		t.Fatalf("created events = %+v", created)
	}
}

func TestCreateDefaultsClassification(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	ticket, err := stack.svc.Create(ctx, domain.InboundEmail{ThreadID: "thread-defaults"}, CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.Priority != domain.PriorityMedium || ticket.Category != "general" {
		t.Fatalf("ticket = %+v", ticket)
	}
	if ticket.LastModifiedBy != "system" {
		t.Fatalf("last modified by = %q", ticket.LastModifiedBy)
	}
}

func TestCreateRequiresThreadID(t *testing.T) {
	stack := newTestStack(nil)

	_, err := stack.svc.Create(context.Background(), domain.InboundEmail{ThreadID: "  "}, CreateOptions{})
	if !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestCreateSameThreadRecordsFollowUp(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	var updated []events.Event
	stack.dispatcher.Subscribe(events.EventTicketUpdated, func(_ context.Context, e events.Event) error {
		updated = append(updated, e)
		return nil
	})

	first, err := stack.svc.Create(ctx, domain.InboundEmail{ThreadID: "thread-dup"}, CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := stack.svc.Create(ctx, domain.InboundEmail{ThreadID: "thread-dup"}, CreateOptions{})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("duplicate ticket opened: %s vs %s", second.ID, first.ID)
	}
	if second.CustomerInteractions != 2 || second.Version != 2 {
		t.Fatalf("ticket = %+v", second)
	}
	tail := second.History[len(second.History)-1]
	if tail.Action != domain.ActionCustomerFollowUp {
		t.Fatalf("tail history = %+v", tail)
	}

	if len(updated) != 1 {
		t.Fatalf("updated events = %d, want 1", len(updated))
	}
	payload, ok := updated[0].Payload.(events.TicketUpdatedPayload)
	if !ok || payload.Changes["follow_up"] != true {
		t.Fatalf("payload = %+v", updated[0].Payload)
	}
}

func TestCreateSucceedsWithDegradedID(t *testing.T) {
	stack := newTestStack(persistence.FailingLocker{})
	ctx := context.Background()

	ticket, err := stack.svc.Create(ctx, domain.InboundEmail{ThreadID: "thread-degraded"}, CreateOptions{})
	if err != nil {
		t.Fatalf("create must survive lock exhaustion: %v", err)
	}
	if !fallbackIDPattern.MatchString(ticket.ID) {
		t.Fatalf("id = %q, want fallback format", ticket.ID)
	}
	if ticket.History[0].Details["degraded_id"] != true {
		t.Fatalf("history details = %+v", ticket.History[0].Details)
	}

	// Degraded tickets stay fully addressable and indexed.
	if _, err := stack.svc.Get(ctx, ticket.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	shards, _ := stack.index.Shards(ctx)
	if len(shards) != 1 {
		t.Fatalf("shards = %+v", shards)
	}
}

func TestGetServesFromCache(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	ticket := createTicket(t, stack, "thread-cache", domain.PriorityMedium, time.Now().UTC())
	if _, err := stack.svc.Get(ctx, ticket.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	// Remove the backing record; the cached copy still answers.
	if err := stack.store.Delete(ctx, repository.TicketKey(ticket.ID)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := stack.svc.Get(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if got.ID != ticket.ID {
		t.Fatalf("got %s", got.ID)
	}
}

func TestUpdateInvalidatesCacheAndPublishes(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	var updated []events.Event
	stack.dispatcher.Subscribe(events.EventTicketUpdated, func(_ context.Context, e events.Event) error {
		updated = append(updated, e)
		return nil
	})

	ticket := createTicket(t, stack, "thread-update", domain.PriorityMedium, time.Now().UTC())
	if _, err := stack.svc.Get(ctx, ticket.ID); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	got, err := stack.svc.Update(ctx, ticket.ID, UpdateInput{Status: statusPtr(domain.StatusOpen)}, "agent")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != domain.StatusOpen {
		t.Fatalf("status = %s", got.Status)
	}
	if len(updated) != 1 {
		t.Fatalf("updated events = %d, want 1", len(updated))
	}
	payload, ok := updated[0].Payload.(events.TicketUpdatedPayload)
	if !ok || payload.OldStatus != domain.StatusNew || payload.NewStatus != domain.StatusOpen {
		t.Fatalf("payload = %+v", updated[0].Payload)
	}

	// The next read reflects the write, not the stale cache entry.
	fresh, err := stack.svc.Get(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.Status != domain.StatusOpen {
		t.Fatalf("cached status = %s after invalidation", fresh.Status)
	}
}

func TestListPaginatesWithoutGapsOrDuplicates(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	const total = 25
	for i := 0; i < total; i++ {
		createTicket(t, stack, fmt.Sprintf("thread-%02d", i), domain.PriorityMedium, time.Now().UTC())
	}

	seen := make(map[string]bool)
	for page := 0; ; page++ {
		result, err := stack.svc.List(ctx, page, 10)
		if err != nil {
			t.Fatalf("list page %d: %v", page, err)
		}
		if result.Total != total {
			t.Fatalf("total = %d, want %d", result.Total, total)
		}
		if len(result.Tickets) == 0 {
			break
		}
		for _, ticket := range result.Tickets {
			if seen[ticket.ID] {
				t.Fatalf("ticket %s appeared on two pages", ticket.ID)
			}
			seen[ticket.ID] = true
		}
	}
	if len(seen) != total {
		t.Fatalf("paged union = %d tickets, want %d", len(seen), total)
	}
}

func TestListPageSizes(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		createTicket(t, stack, fmt.Sprintf("thread-size-%02d", i), domain.PriorityMedium, time.Now().UTC())
	}

	last, err := stack.svc.List(ctx, 2, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(last.Tickets) != 5 {
		t.Fatalf("last page = %d tickets, want 5", len(last.Tickets))
	}

	beyond, err := stack.svc.List(ctx, 9, 10)
	if err != nil {
		t.Fatalf("list beyond: %v", err)
	}
	if len(beyond.Tickets) != 0 || beyond.Total != 25 {
		t.Fatalf("beyond = %+v", beyond)
	}
}

func TestSearchByQueryAndFilters(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	mk := func(thread, subject string, priority domain.Priority, tags ...string) {
		if _, err := stack.svc.Create(ctx, domain.InboundEmail{
			ThreadID: thread,
			From:     "customer@example.com",
			Subject:  subject,
		}, CreateOptions{Priority: priority, Tags: tags}); err != nil {
			t.Fatalf("create %s: %v", thread, err)
		}
	}
	mk("thread-s1", "Refund for order 42", domain.PriorityUrgent, "billing")
	mk("thread-s2", "Password reset", domain.PriorityMedium)
	mk("thread-s3", "Refund status", domain.PriorityLow, "billing")

	result, err := stack.svc.Search(ctx, "refund", SearchFilters{}, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("query matches = %d, want 2", result.Total)
	}

	urgent := domain.PriorityUrgent
	result, err = stack.svc.Search(ctx, "refund", SearchFilters{Priority: &urgent}, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Tickets[0].ThreadID != "thread-s1" {
		t.Fatalf("filtered = %+v", result)
	}

	// Tag substrings match too.
	result, err = stack.svc.Search(ctx, "billing", SearchFilters{}, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("tag matches = %d, want 2", result.Total)
	}

	newStatus := domain.StatusNew
	result, err = stack.svc.Search(ctx, "", SearchFilters{Status: &newStatus}, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("status matches = %d, want 3", result.Total)
	}
}

func TestSearchSortsByPriority(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	createTicket(t, stack, "thread-p1", domain.PriorityLow, time.Now().UTC())
	createTicket(t, stack, "thread-p2", domain.PriorityUrgent, time.Now().UTC())
	createTicket(t, stack, "thread-p3", domain.PriorityHigh, time.Now().UTC())

	result, err := stack.svc.Search(ctx, "", SearchFilters{SortBy: "priority", SortAsc: true}, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	order := []domain.Priority{domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityLow}
	for i, want := range order {
		if result.Tickets[i].Priority != want {
			t.Fatalf("position %d = %s, want %s", i, result.Tickets[i].Priority, want)
		}
	}
}

func TestStatistics(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	createTicket(t, stack, "thread-st1", domain.PriorityUrgent, time.Now().UTC())
	createTicket(t, stack, "thread-st2", domain.PriorityMedium, time.Now().UTC())
	low := createTicket(t, stack, "thread-st3", domain.PriorityLow, time.Now().UTC())

	if _, err := stack.svc.Update(ctx, low.ID, UpdateInput{Status: statusPtr(domain.StatusOpen)}, "agent"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := stack.svc.RecordResponse(ctx, low.ID, "agent"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if _, err := stack.svc.Update(ctx, low.ID, UpdateInput{Status: statusPtr(domain.StatusResolved)}, "agent"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	stats, err := stack.svc.Statistics(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.ByPriority[domain.PriorityUrgent] != 1 || stats.ByPriority[domain.PriorityLow] != 1 {
		t.Fatalf("by priority = %+v", stats.ByPriority)
	}
	if stats.ByStatus[domain.StatusResolved] != 1 || stats.ByStatus[domain.StatusNew] != 2 {
		t.Fatalf("by status = %+v", stats.ByStatus)
	}
	if stats.ByCategory["general"] != 3 {
		t.Fatalf("by category = %+v", stats.ByCategory)
	}
	if stats.SLACompliancePercent != 100 {
		t.Fatalf("compliance = %v, want 100", stats.SLACompliancePercent)
	}

	// A window before any ticket existed aggregates nothing.
	past := time.Now().UTC().AddDate(0, 0, -30)
	empty, err := stack.svc.Statistics(ctx, past, past.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if empty.Total != 0 {
		t.Fatalf("total = %d, want 0", empty.Total)
	}
}

func TestStatisticsCountsBreaches(t *testing.T) {
	stack := newTestStack(nil)
	ctx := context.Background()

	createTicket(t, stack, "thread-b1", domain.PriorityUrgent, time.Now().UTC().Add(-1*time.Hour))
	createTicket(t, stack, "thread-b2", domain.PriorityLow, time.Now().UTC())

	if _, _, err := stack.sla.Sweep(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	stats, err := stack.svc.Statistics(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 2 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.SLACompliancePercent != 50 {
		t.Fatalf("compliance = %v, want 50", stats.SLACompliancePercent)
	}
}
