package errorhandler

import (
	"log/slog"
	"maps"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/logfields"
)

// Context describes where errors are currently being handled. It is attached
// to every log record and event the handler emits.
type Context struct {
	Timestamp time.Time      `json:"timestamp"`
	Endpoint  string         `json:"endpoint,omitempty"`
	Method    string         `json:"method,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// merge applies the non-zero fields of patch onto c. A non-nil Metadata map
// replaces the existing one rather than merging key by key.
func (c Context) merge(patch Context) Context {
	if !patch.Timestamp.IsZero() {
		c.Timestamp = patch.Timestamp
	}
	if patch.Endpoint != "" {
		c.Endpoint = patch.Endpoint
	}
	if patch.Method != "" {
		c.Method = patch.Method
	}
	if patch.UserID != "" {
		c.UserID = patch.UserID
	}
	if patch.SessionID != "" {
		c.SessionID = patch.SessionID
	}
	if patch.Metadata != nil {
		c.Metadata = maps.Clone(patch.Metadata)
	}
	return c
}

func (c Context) clone() Context {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}

func (c Context) attrs() []slog.Attr {
	attrs := []slog.Attr{logfields.Timestamp(c.Timestamp)}
	if c.Endpoint != "" {
		attrs = append(attrs, logfields.Endpoint(c.Endpoint))
	}
	if c.Method != "" {
		attrs = append(attrs, logfields.Method(c.Method))
	}
	if c.UserID != "" {
		attrs = append(attrs, logfields.UserID(c.UserID))
	}
	if c.SessionID != "" {
		attrs = append(attrs, logfields.SessionID(c.SessionID))
	}
	if len(c.Metadata) > 0 {
		attrs = append(attrs, logfields.Metadata(c.Metadata))
	}
	return attrs
}

// UpdateContext shallow-merges patch into the live context. Only log records
// and events produced afterwards see the change.
func (h *Handler) UpdateContext(patch Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = h.ctx.merge(patch)
}

// Context returns a snapshot of the live context.
func (h *Handler) Context() Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx.clone()
}
