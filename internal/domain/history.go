package domain

import "time"

// HistoryEntry is an immutable audit trail entry. Entries are only ever
// appended, never rewritten.
type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
}

// History actions recorded by the lifecycle engine.
const (
	ActionCreated          = "created"
	ActionUpdated          = "updated"
	ActionStatusChanged    = "status_changed"
	ActionCustomerFollowUp = "customer_follow_up"
	ActionResponseRecorded = "response_recorded"
	ActionSLABreach        = "sla_breach"
)
