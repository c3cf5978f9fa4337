package domain

import "time"

// InboundEmail is the slice of an email message this core needs. Fetching
// and parsing mail is the provider's job.
type InboundEmail struct {
	ThreadID string    `json:"thread_id"`
	From     string    `json:"from"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Date     time.Time `json:"date"`
}
