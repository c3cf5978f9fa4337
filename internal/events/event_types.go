package events

import (
	"time"

	"github.com/spec-kit/support-ticket-core/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketUpdated EventType = "ticket_updated"
	EventSLABreach     EventType = "sla_breach"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ThreadID   string          `json:"thread_id"`
	Priority   domain.Priority `json:"priority"`
	Category   string          `json:"category"`
	Subject    string          `json:"subject"`
	DegradedID bool            `json:"degraded_id,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	OldStatus domain.Status  `json:"old_status,omitempty"`
	NewStatus domain.Status  `json:"new_status,omitempty"`
	Changes   map[string]any `json:"changes,omitempty"`
	Version   int64          `json:"version"`
}

// SLABreachPayload payload.
type SLABreachPayload struct {
	Priority domain.Priority `json:"priority"`
	Reason   string          `json:"reason"`
	Target   time.Time       `json:"target"`
}
