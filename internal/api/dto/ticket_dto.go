package dto

import (
	"time"

	"github.com/spec-kit/support-ticket-core/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ThreadID string          `json:"thread_id"`
	From     string          `json:"from"`
	Subject  string          `json:"subject"`
	Body     string          `json:"body"`
	Date     *time.Time      `json:"date,omitempty"`
	Category string          `json:"category,omitempty"`
	Priority domain.Priority `json:"priority,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

// UpdateTicketRequest payload. Absent fields leave the ticket untouched.
type UpdateTicketRequest struct {
	Status   *domain.Status   `json:"status,omitempty"`
	Priority *domain.Priority `json:"priority,omitempty"`
	Category *string          `json:"category,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID                    string          `json:"id"`
	ThreadID              string          `json:"thread_id"`
	Subject               string          `json:"subject"`
	From                  string          `json:"from"`
	Category              string          `json:"category"`
	Status                domain.Status   `json:"status"`
	Priority              domain.Priority `json:"priority"`
	Tags                  []string        `json:"tags,omitempty"`
	ReopenedCount         int             `json:"reopened_count"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	ResolvedAt            *time.Time      `json:"resolved_at,omitempty"`
	ClosedAt              *time.Time      `json:"closed_at,omitempty"`
	FirstResponseAt       *time.Time      `json:"first_response_at,omitempty"`
	ResponseTimeMinutes   *int            `json:"response_time_minutes,omitempty"`
	ResolutionTimeMinutes *int            `json:"resolution_time_minutes,omitempty"`
	CustomerInteractions  int             `json:"customer_interactions"`
	AgentInteractions     int             `json:"agent_interactions"`
	ResponseTarget        time.Time       `json:"response_target"`
	ResolutionTarget      time.Time       `json:"resolution_target"`
	Breached              bool            `json:"breached"`
	BreachReason          string          `json:"breach_reason,omitempty"`
	Version               int64           `json:"version"`
}

// FromDomain maps a domain ticket to its response shape.
func FromDomain(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                    t.ID,
		ThreadID:              t.ThreadID,
		Subject:               t.Subject,
		From:                  t.From,
		Category:              t.Category,
		Status:                t.Status,
		Priority:              t.Priority,
		Tags:                  t.Tags,
		ReopenedCount:         t.ReopenedCount,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		ResolvedAt:            t.ResolvedAt,
		ClosedAt:              t.ClosedAt,
		FirstResponseAt:       t.FirstResponseAt,
		ResponseTimeMinutes:   t.ResponseTimeMinutes,
		ResolutionTimeMinutes: t.ResolutionTimeMinutes,
		CustomerInteractions:  t.CustomerInteractions,
		AgentInteractions:     t.AgentInteractions,
		ResponseTarget:        t.ResponseTarget,
		ResolutionTarget:      t.ResolutionTarget,
		Breached:              t.Breached,
		BreachReason:          t.BreachReason,
		Version:               t.Version,
	}
}

// SearchResponse is one page of tickets.
type SearchResponse struct {
	Tickets  []TicketResponse `json:"tickets"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// TokenRequest payload.
type TokenRequest struct {
	AgentID string `json:"agent_id"`
	Secret  string `json:"secret"`
}

// TokenResponse payload.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
