// Package errorstream carries handled errors between services over NATS JetStream.
package errorstream

import (
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// Envelope is the wire format of one handled error.
type Envelope struct {
	ID         string               `json:"id"`
	Time       time.Time            `json:"time"`
	Source     string               `json:"source,omitempty"`
	Code       string               `json:"code"`
	Message    string               `json:"message"`
	Category   errors.ErrorCategory `json:"category"`
	Severity   errors.ErrorSeverity `json:"severity"`
	StatusCode int                  `json:"statusCode,omitempty"`
	Fields     []string             `json:"fields,omitempty"`
	Action     string               `json:"action,omitempty"`
	Context    EnvelopeContext      `json:"context"`
}

// EnvelopeContext is the subset of the handler context that travels with an envelope.
type EnvelopeContext struct {
	Endpoint  string         `json:"endpoint,omitempty"`
	Method    string         `json:"method,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FromEvent converts a handler event into an envelope tagged with source.
func FromEvent(source string, e errorhandler.Event) Envelope {
	env := Envelope{
		ID:     e.ID.String(),
		Time:   e.Time.UTC(),
		Source: source,
		Action: string(e.Strategy.Action),
		Context: EnvelopeContext{
			Endpoint:  e.Context.Endpoint,
			Method:    e.Context.Method,
			UserID:    e.Context.UserID,
			SessionID: e.Context.SessionID,
			Metadata:  e.Context.Metadata,
		},
	}
	if be := e.Error; be != nil {
		env.Code = be.Code
		env.Message = be.Message
		env.Category = be.Category
		env.Severity = be.Severity
		env.StatusCode = be.StatusCode()
		if d, ok := be.Detail.(errors.ValidationDetail); ok {
			env.Fields = d.Fields
		}
	}
	return env
}

// BaseError rebuilds the classified error the envelope describes.
func (e Envelope) BaseError() *errors.BaseError {
	return errors.Restore(e.Category, e.Severity, e.Code, e.Message, e.StatusCode, e.Fields)
}

// HandlerContext returns the envelope context as a handler context.
func (e Envelope) HandlerContext() errorhandler.Context {
	return errorhandler.Context{
		Timestamp: e.Time,
		Endpoint:  e.Context.Endpoint,
		Method:    e.Context.Method,
		UserID:    e.Context.UserID,
		SessionID: e.Context.SessionID,
		Metadata:  e.Context.Metadata,
	}
}

// Encode marshals env to JSON.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Decode parses and validates an envelope. Malformed payloads are VALIDATION errors.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.NewValidationError(fmt.Sprintf("decode envelope: %v", err)).WithCause(err)
	}
	if env.ID == "" {
		return Envelope{}, errors.NewValidationError("envelope id is required", "id")
	}
	category, err := errors.ParseCategory(string(env.Category))
	if err != nil {
		return Envelope{}, errors.NewValidationError(err.Error(), "category")
	}
	env.Category = category
	if !env.Severity.Valid() {
		return Envelope{}, errors.NewValidationError("envelope severity is required", "severity")
	}
	if env.Code == "" {
		return Envelope{}, errors.NewValidationError("envelope code is required", "code")
	}
	return env, nil
}
