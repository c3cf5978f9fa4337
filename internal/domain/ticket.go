package domain

import "time"

// Status enumerates lifecycle states for tickets.
type Status string

const (
	StatusNew             Status = "new"
	StatusOpen            Status = "open"
	StatusInProgress      Status = "in_progress"
	StatusWaitingCustomer Status = "waiting_customer"
	StatusEscalated       Status = "escalated"
	StatusResolved        Status = "resolved"
	StatusClosed          Status = "closed"
	StatusReopened        Status = "reopened"
)

// Priority enumerates SLA urgency.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// BreachReason identifies which SLA target was missed.
const (
	BreachReasonResponse   = "response"
	BreachReasonResolution = "resolution"
)

// Ticket is the aggregate for one support conversation.
type Ticket struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`

	Subject  string `json:"subject"`
	From     string `json:"from"`
	Category string `json:"category"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	Tags     []string `json:"tags,omitempty"`

	ReopenedCount int `json:"reopened_count"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`

	ResponseTimeMinutes   *int `json:"response_time_minutes,omitempty"`
	ResolutionTimeMinutes *int `json:"resolution_time_minutes,omitempty"`
	CustomerInteractions  int  `json:"customer_interactions"`
	AgentInteractions     int  `json:"agent_interactions"`

	ResponseTarget   time.Time `json:"response_target"`
	ResolutionTarget time.Time `json:"resolution_target"`
	Breached         bool      `json:"breached"`
	BreachReason     string    `json:"breach_reason,omitempty"`

	History []HistoryEntry `json:"history"`

	Version        int64  `json:"_version"`
	LastModifiedBy string `json:"_last_modified_by"`
}

// IsOpen reports whether the ticket is still within its open lifetime,
// i.e. neither resolved nor closed.
func (t *Ticket) IsOpen() bool {
	switch t.Status {
	case StatusResolved, StatusClosed:
		return false
	}
	return true
}

// HasResponse reports whether a first agent response was recorded.
func (t *Ticket) HasResponse() bool {
	return t.FirstResponseAt != nil
}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}
