package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyErrorCode     = "error.code"
	KeyErrorCategory = "error.category"
	KeyErrorSeverity = "error.severity"
	KeyErrorMessage  = "error.message"
	KeySessionID     = "session_id"
	KeyUserID        = "user_id"
	KeyEndpoint      = "endpoint"
	KeyMethod        = "method"
	KeyAttempt       = "attempt"
	KeyDelayMS       = "delay_ms"
	KeyAction        = "action"
	KeySubject       = "subject"
	KeyPath          = "path"
	KeyURL           = "url"
	KeyEventID       = "event_id"
	KeyError         = "error"
	KeyMetadata      = "metadata"
	KeyTimestamp     = "context.timestamp"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ErrorCode(c string) slog.Attr     { return slog.String(KeyErrorCode, c) }
func ErrorCategory(c string) slog.Attr { return slog.String(KeyErrorCategory, c) }
func ErrorSeverity(s string) slog.Attr { return slog.String(KeyErrorSeverity, s) }
func ErrorMessage(m string) slog.Attr  { return slog.String(KeyErrorMessage, m) }
func SessionID(id string) slog.Attr    { return slog.String(KeySessionID, id) }
func UserID(id string) slog.Attr       { return slog.String(KeyUserID, id) }
func Endpoint(e string) slog.Attr      { return slog.String(KeyEndpoint, e) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func DelayMS(ms int64) slog.Attr       { return slog.Int64(KeyDelayMS, ms) }
func Action(a string) slog.Attr        { return slog.String(KeyAction, a) }
func Subject(s string) slog.Attr       { return slog.String(KeySubject, s) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func EventID(id string) slog.Attr      { return slog.String(KeyEventID, id) }
func Metadata(m map[string]any) slog.Attr {
	return slog.Any(KeyMetadata, m)
}
func Timestamp(t time.Time) slog.Attr { return slog.Time(KeyTimestamp, t) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
