package errors

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", NewValidationError("invalid input"), http.StatusBadRequest},
		{"auth error", NewAuthError("expired", "unauthorized"), http.StatusUnauthorized},
		{"api error keeps upstream status", NewAPIError(429, "slow down"), http.StatusTooManyRequests},
		{"api error without status", New(CategoryAPI, SeverityMedium, "", "odd"), http.StatusBadGateway},
		{"network error", NewNetworkError("dial", "refused", false), http.StatusBadGateway},
		{"storage error", NewStorageError("k", "locked"), http.StatusServiceUnavailable},
		{"audio error", NewAudioError("mic", "busy"), http.StatusInternalServerError},
		{"unclassified error", &customError{msg: "unknown error"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.StatusCodeFor(tt.err); got != tt.expected {
				t.Errorf("StatusCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	adapter.WriteErrorResponse(w, r, NewValidationError("message required", "message"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	var response HTTPErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if response.Code != CodeValidation || response.Category != "VALIDATION" || response.Severity != "LOW" {
		t.Errorf("unexpected payload: %+v", response)
	}
	if len(response.Fields) != 1 || response.Fields[0] != "message" {
		t.Errorf("fields = %v", response.Fields)
	}
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation error", NewValidationError("bad flag"), 2},
		{"auth error", NewAuthError("", "denied"), 5},
		{"api error", NewAPIError(500, "down"), 8},
		{"network error", NewNetworkError("", "down", false), 8},
		{"storage error", NewStorageError("", "locked"), 11},
		{"tts error", NewTTSError("", "down"), 12},
		{"unclassified error", &customError{msg: "unknown error"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var stderr bytes.Buffer
	var code int
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	adapter.stderr = &stderr
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(NewStorageError("journal", "database is locked"))

	if code != 11 {
		t.Errorf("exit code = %d, want 11", code)
	}
	if !strings.Contains(stderr.String(), "STORAGE: database is locked") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[ErrorSeverity]slog.Level{
		SeverityLow:      slog.LevelDebug,
		SeverityMedium:   slog.LevelWarn,
		SeverityHigh:     slog.LevelError,
		SeverityCritical: slog.LevelError,
	}
	for s, want := range cases {
		if got := SlogLevel(s); got != want {
			t.Errorf("SlogLevel(%s) = %v, want %v", s, got, want)
		}
	}
}
