// Package errors provides the closed error taxonomy (ErrorCategory, ErrorSeverity)
// and the canonical BaseError used by the recovery coordinator, its policy table
// and the retry executor.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory classifies the origin of a failure. The set is closed.
type ErrorCategory string

const (
	CategoryNetwork    ErrorCategory = "NETWORK"
	CategoryAPI        ErrorCategory = "API"
	CategoryValidation ErrorCategory = "VALIDATION"
	CategoryAuth       ErrorCategory = "AUTH"
	CategoryFile       ErrorCategory = "FILE"
	CategoryAudio      ErrorCategory = "AUDIO"
	CategoryTTS        ErrorCategory = "TTS"
	CategoryStorage    ErrorCategory = "STORAGE"
	CategoryUnknown    ErrorCategory = "UNKNOWN"
)

// Categories lists every category in normalizer priority order, UNKNOWN last.
var Categories = []ErrorCategory{
	CategoryAPI,
	CategoryNetwork,
	CategoryValidation,
	CategoryAuth,
	CategoryFile,
	CategoryAudio,
	CategoryTTS,
	CategoryStorage,
	CategoryUnknown,
}

// Valid reports whether c is one of the closed set of categories.
func (c ErrorCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts user input (case-insensitive) into a category.
func ParseCategory(raw string) (ErrorCategory, error) {
	c := ErrorCategory(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category %q", raw)
	}
	return c, nil
}

// ErrorSeverity is ordered: SeverityLow < SeverityMedium < SeverityHigh < SeverityCritical.
// It selects the log level only; recovery routing never looks at it.
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[ErrorSeverity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s ErrorSeverity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ErrorSeverity(%d)", int(s))
}

// Valid reports whether s is a known severity.
func (s ErrorSeverity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// ParseSeverity converts user input (case-insensitive) into a severity.
func ParseSeverity(raw string) (ErrorSeverity, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	for s, name := range severityNames {
		if name == upper {
			return s, nil
		}
	}
	return 0, fmt.Errorf("invalid severity %q", raw)
}

// MarshalText encodes the severity by name.
func (s ErrorSeverity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *ErrorSeverity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// BaseError is the canonical in-memory representation of any failure.
// Category and Severity are assigned once by a constructor or the normalizer.
type BaseError struct {
	Code     string
	Message  string
	Category ErrorCategory
	Severity ErrorSeverity
	// Cause is the original value, kept for debugging. It is never logged.
	Cause  any
	Detail Detail
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Severity, e.Code, e.Message)
}

// Unwrap exposes the cause when it is itself an error.
func (e *BaseError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// WithCause returns a copy of e carrying cause.
func (e *BaseError) WithCause(cause any) *BaseError {
	c := *e
	c.Cause = cause
	return &c
}

// WithSeverity returns a copy of e with a different severity.
func (e *BaseError) WithSeverity(s ErrorSeverity) *BaseError {
	c := *e
	c.Severity = s
	return &c
}

// WithMessage returns a copy of e with a different message.
func (e *BaseError) WithMessage(msg string) *BaseError {
	c := *e
	c.Message = msg
	return &c
}

// StatusCode returns the HTTP status carried by API errors, or 0.
func (e *BaseError) StatusCode() int {
	if d, ok := e.Detail.(APIDetail); ok {
		return d.StatusCode
	}
	return 0
}
