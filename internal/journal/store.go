// Package journal persists handled errors so operators can inspect what the
// tutoring services failed on after the fact.
package journal

import (
	"context"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// Record is one handled error as stored in the journal.
type Record struct {
	ID         string               `json:"id"`
	OccurredAt time.Time            `json:"occurredAt"`
	Code       string               `json:"code"`
	Category   errors.ErrorCategory `json:"category"`
	Severity   errors.ErrorSeverity `json:"severity"`
	Message    string               `json:"message"`
	SessionID  string               `json:"sessionId,omitempty"`
	UserID     string               `json:"userId,omitempty"`
	Endpoint   string               `json:"endpoint,omitempty"`
	Method     string               `json:"method,omitempty"`
	Action     string               `json:"action"`
	CanRecover bool                 `json:"canRecover"`
	DelayMS    int64                `json:"delayMs,omitempty"`
	Metadata   map[string]any       `json:"metadata,omitempty"`
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Category    errors.ErrorCategory
	MinSeverity errors.ErrorSeverity
	SessionID   string
	Since       time.Time
	Limit       int
}

// Store defines the interface for persisting and retrieving journal records.
type Store interface {
	// Append adds a record to the journal.
	Append(ctx context.Context, r Record) error

	// List returns matching records, newest first.
	List(ctx context.Context, f Filter) ([]Record, error)

	// Prune deletes records that occurred before cutoff and reports how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

// RecordFromEvent flattens a handler event into a journal record.
func RecordFromEvent(e errorhandler.Event) Record {
	r := Record{
		ID:         e.ID.String(),
		OccurredAt: e.Time,
		SessionID:  e.Context.SessionID,
		UserID:     e.Context.UserID,
		Endpoint:   e.Context.Endpoint,
		Method:     e.Context.Method,
		Action:     string(e.Strategy.Action),
		CanRecover: e.Strategy.CanRecover,
		DelayMS:    e.Strategy.Delay.Milliseconds(),
		Metadata:   e.Context.Metadata,
	}
	if e.Error != nil {
		r.Code = e.Error.Code
		r.Category = e.Error.Category
		r.Severity = e.Error.Severity
		r.Message = e.Error.Message
	}
	return r
}
