package errors

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"syscall"
)

// Capability interfaces recognised by the normalizer. Foreign error types opt in
// by implementing them; nothing else is needed to be classified correctly.
type (
	statusCoder interface{ StatusCode() int }
	fieldLister interface{ ValidationFields() []string }
	authFailer  interface{ AuthFailure() string }
	categorizer interface{ ErrorCategory() ErrorCategory }
)

var networkCodes = map[string]bool{
	"ECONNREFUSED": true,
	"ECONNRESET":   true,
	"ETIMEDOUT":    true,
	"ENOTFOUND":    true,
	"EAI_AGAIN":    true,
}

const unknownMessage = "unknown error"

// probe reports the variant detail for one category when the input carries that
// category's structural signal.
type probe struct {
	category ErrorCategory
	test     func(input any) (Detail, bool)
}

// probes run in priority order: API > Network > Validation > Auth > File > Audio > TTS > Storage.
var probes = []probe{
	{CategoryAPI, probeAPI},
	{CategoryNetwork, probeNetwork},
	{CategoryValidation, probeValidation},
	{CategoryAuth, probeAuth},
	{CategoryFile, probeFile},
	{CategoryAudio, probeNamed("AudioError", AudioDetail{})},
	{CategoryTTS, probeNamed("TTSError", TTSDetail{})},
	{CategoryStorage, probeStorage},
}

// ToBaseError converts any value into a BaseError. It never panics and never
// returns nil. An existing *BaseError is returned unchanged. Otherwise the input
// is inspected for category signals in fixed priority order; the optional hint
// is used only when no signal was found. The ultimate fallback is UNKNOWN/MEDIUM.
func ToBaseError(input any, hint ...ErrorCategory) (out *BaseError) {
	defer func() {
		if r := recover(); r != nil {
			out = New(CategoryUnknown, SeverityMedium, CodeUnknown, unknownMessage).WithCause(input)
		}
	}()

	if be, ok := input.(*BaseError); ok && be != nil {
		return be
	}
	if err, ok := input.(error); ok {
		if be, found := AsBaseError(err); found {
			// Wrapped: keep classification, surface the outer message.
			c := *be
			c.Message = err.Error()
			c.Cause = err
			return &c
		}
	}
	if m, ok := input.(map[string]any); ok {
		if be, rebuilt := fromShape(m); rebuilt {
			return be
		}
	}

	message := messageOf(input)
	category, detail := classify(input)
	if category == CategoryUnknown {
		if h := firstHint(hint); h != CategoryUnknown {
			category, detail = h, detailFor(h)
		}
	}

	if d, ok := detail.(APIDetail); ok && d.StatusCode > 0 {
		return NewAPIError(d.StatusCode, message).WithCause(input)
	}
	return &BaseError{
		Code:     defaultCode(category),
		Message:  message,
		Category: category,
		Severity: DefaultSeverity(category),
		Cause:    input,
		Detail:   detail,
	}
}

func firstHint(hint []ErrorCategory) ErrorCategory {
	if len(hint) == 0 || !hint[0].Valid() {
		return CategoryUnknown
	}
	return hint[0]
}

func classify(input any) (ErrorCategory, Detail) {
	if input == nil {
		return CategoryUnknown, nil
	}
	declared := CategoryUnknown
	if c, ok := as[categorizer](input); ok && c.ErrorCategory().Valid() {
		declared = c.ErrorCategory()
	}
	for _, p := range probes {
		if d, ok := p.test(input); ok {
			return p.category, d
		}
		if declared == p.category {
			return declared, detailFor(declared)
		}
	}
	return CategoryUnknown, nil
}

// as finds T in an error chain, or asserts it directly for non-error values.
func as[T any](input any) (T, bool) {
	if err, ok := input.(error); ok {
		var target T
		if stderrors.As(err, &target) {
			return target, true
		}
		var zero T
		return zero, false
	}
	t, ok := input.(T)
	return t, ok
}

func probeAPI(input any) (Detail, bool) {
	if m, ok := input.(map[string]any); ok {
		for _, key := range []string{"statusCode", "status_code", "status"} {
			if n, ok := number(m[key]); ok && n > 0 {
				return APIDetail{StatusCode: n}, true
			}
		}
		return nil, false
	}
	if sc, ok := as[statusCoder](input); ok && sc.StatusCode() > 0 {
		return APIDetail{StatusCode: sc.StatusCode()}, true
	}
	return nil, false
}

func probeNetwork(input any) (Detail, bool) {
	if m, ok := input.(map[string]any); ok {
		if name(m) == "NetworkError" {
			return NetworkDetail{}, true
		}
		if code, _ := m["code"].(string); networkCodes[code] {
			return NetworkDetail{Op: code, Timeout: code == "ETIMEDOUT"}, true
		}
		return nil, false
	}
	err, ok := input.(error)
	if !ok {
		return nil, false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NetworkDetail{Op: "deadline", Timeout: true}, true
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return NetworkDetail{Op: opErr.Op, Timeout: opErr.Timeout()}, true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return NetworkDetail{Timeout: netErr.Timeout()}, true
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) || stderrors.Is(err, syscall.ECONNRESET) {
		return NetworkDetail{Op: "dial"}, true
	}
	return nil, false
}

func probeValidation(input any) (Detail, bool) {
	if m, ok := input.(map[string]any); ok {
		for _, key := range []string{"fields", "validationErrors"} {
			if list, ok := m[key].([]any); ok {
				return ValidationDetail{Fields: fieldNames(list)}, true
			}
		}
		if name(m) == "ValidationError" {
			return ValidationDetail{}, true
		}
		return nil, false
	}
	if fl, ok := as[fieldLister](input); ok {
		return ValidationDetail{Fields: fl.ValidationFields()}, true
	}
	return nil, false
}

func probeAuth(input any) (Detail, bool) {
	if m, ok := input.(map[string]any); ok {
		if name(m) == "AuthError" {
			reason, _ := m["reason"].(string)
			return AuthDetail{Reason: reason}, true
		}
		return nil, false
	}
	if af, ok := as[authFailer](input); ok {
		return AuthDetail{Reason: af.AuthFailure()}, true
	}
	return nil, false
}

func probeFile(input any) (Detail, bool) {
	if m, ok := input.(map[string]any); ok {
		path, hasPath := m["path"].(string)
		if name(m) == "FileError" || hasPath {
			return FileDetail{Path: path}, true
		}
		return nil, false
	}
	err, ok := input.(error)
	if !ok {
		return nil, false
	}
	var pathErr *fs.PathError
	if stderrors.As(err, &pathErr) {
		return FileDetail{Op: pathErr.Op, Path: pathErr.Path}, true
	}
	if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, fs.ErrPermission) || stderrors.Is(err, fs.ErrExist) {
		return FileDetail{}, true
	}
	return nil, false
}

func probeStorage(input any) (Detail, bool) {
	if d, ok := probeNamed("StorageError", StorageDetail{})(input); ok {
		if m, isMap := input.(map[string]any); isMap {
			key, _ := m["key"].(string)
			return StorageDetail{Key: key}, true
		}
		return d, true
	}
	err, ok := input.(error)
	if !ok {
		return nil, false
	}
	if stderrors.Is(err, sql.ErrNoRows) || stderrors.Is(err, sql.ErrConnDone) || stderrors.Is(err, sql.ErrTxDone) {
		return StorageDetail{}, true
	}
	return nil, false
}

func probeNamed(errorName string, d Detail) func(any) (Detail, bool) {
	return func(input any) (Detail, bool) {
		if m, ok := input.(map[string]any); ok && name(m) == errorName {
			return d, true
		}
		return nil, false
	}
}

// fromShape rebuilds a BaseError from a decoded object that already carries
// category, severity and code, e.g. an envelope sent by another service.
func fromShape(m map[string]any) (*BaseError, bool) {
	rawCategory, ok := m["category"].(string)
	if !ok {
		return nil, false
	}
	category, err := ParseCategory(rawCategory)
	if err != nil {
		return nil, false
	}
	severity, ok := severityOf(m["severity"])
	if !ok {
		return nil, false
	}
	code, ok := codeOf(m["code"])
	if !ok {
		return nil, false
	}

	status, _ := number(m["statusCode"])
	var fields []string
	if list, ok := m["fields"].([]any); ok {
		fields = fieldNames(list)
	}
	be := Restore(category, severity, code, messageOf(m), status, fields)
	be.Cause = m
	return be, true
}

func severityOf(v any) (ErrorSeverity, bool) {
	switch s := v.(type) {
	case string:
		parsed, err := ParseSeverity(s)
		return parsed, err == nil
	case ErrorSeverity:
		return s, s.Valid()
	}
	if n, ok := number(v); ok && ErrorSeverity(n).Valid() {
		return ErrorSeverity(n), true
	}
	return 0, false
}

func codeOf(v any) (string, bool) {
	switch c := v.(type) {
	case string:
		return c, c != ""
	case nil:
		return "", false
	}
	if n, ok := number(v); ok {
		return strconv.Itoa(n), true
	}
	return "", false
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func name(m map[string]any) string {
	s, _ := m["name"].(string)
	return s
}

func fieldNames(list []any) []string {
	fields := make([]string, 0, len(list))
	for _, item := range list {
		switch f := item.(type) {
		case string:
			fields = append(fields, f)
		case map[string]any:
			if s, ok := f["field"].(string); ok {
				fields = append(fields, s)
			}
		}
	}
	return fields
}

func messageOf(input any) string {
	switch v := input.(type) {
	case nil:
		return unknownMessage
	case error:
		return v.Error()
	case map[string]any:
		if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(input)
}
