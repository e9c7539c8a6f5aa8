// Package audit records durable execution history: script runs, model
// turns, and patch applies, queryable after the fact.
package audit

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Category represents the kind of operation being audited.
type Category string

const (
	CategoryModel   Category = "model"
	CategoryScript  Category = "script"
	CategoryPatch   Category = "patch"
	CategorySession Category = "session"
)

// Status represents the outcome of an operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Event is a single auditable operation.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Category  Category  `json:"category"`
	Operation string    `json:"operation"`
	Command   string    `json:"command,omitempty"`
	Status    Status    `json:"status"`
	ExitCode  int       `json:"exit_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_ms"`
}

// NewEvent starts an event for the given operation.
func NewEvent(sessionID string, category Category, operation string) *Event {
	return &Event{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Category:  category,
		Operation: operation,
		StartedAt: time.Now(),
	}
}

// Finish stamps duration and outcome.
func (e *Event) Finish(status Status, err error) *Event {
	e.Status = status
	e.Duration = time.Since(e.StartedAt).Milliseconds()
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
