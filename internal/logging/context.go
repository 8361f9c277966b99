package logging

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/tutorguard/internal/logfields"
)

// Request holds per-request identifiers that should appear on every log line
// written while serving it.
type Request struct {
	SessionID string
	UserID    string
	Endpoint  string
	Method    string
}

type requestKeyType struct{}

var requestKey requestKeyType

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	r := FromContext(ctx)
	r.SessionID = id
	return context.WithValue(ctx, requestKey, r)
}

// WithUserID adds a user ID to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	r := FromContext(ctx)
	r.UserID = id
	return context.WithValue(ctx, requestKey, r)
}

// WithEndpoint adds the endpoint and method being served to the context.
func WithEndpoint(ctx context.Context, method, endpoint string) context.Context {
	r := FromContext(ctx)
	r.Method = method
	r.Endpoint = endpoint
	return context.WithValue(ctx, requestKey, r)
}

// WithRequest replaces the request stored on the context.
func WithRequest(ctx context.Context, r Request) context.Context {
	return context.WithValue(ctx, requestKey, r)
}

// FromContext returns the request stored on ctx, or the zero Request.
func FromContext(ctx context.Context) Request {
	if ctx == nil {
		return Request{}
	}
	if r, ok := ctx.Value(requestKey).(Request); ok {
		return r
	}
	return Request{}
}

func requestAttrs(ctx context.Context) []slog.Attr {
	r := FromContext(ctx)
	var attrs []slog.Attr
	if r.SessionID != "" {
		attrs = append(attrs, logfields.SessionID(r.SessionID))
	}
	if r.UserID != "" {
		attrs = append(attrs, logfields.UserID(r.UserID))
	}
	if r.Endpoint != "" {
		attrs = append(attrs, logfields.Endpoint(r.Endpoint))
	}
	if r.Method != "" {
		attrs = append(attrs, logfields.Method(r.Method))
	}
	return attrs
}
