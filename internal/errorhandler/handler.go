// Package errorhandler coordinates error handling for the tutoring services.
//
// A Handler normalizes arbitrary failures into *errors.BaseError values, logs
// them with the current Context, notifies listeners and computes a recovery
// recommendation. It never performs the recommended action itself: callers
// inspect the returned strategy and decide whether to retry (see Retry),
// fall back, notify the user or abort.
package errorhandler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/logfields"
	"git.home.luguber.info/inful/tutorguard/internal/metrics"
	"git.home.luguber.info/inful/tutorguard/internal/recovery"
	"git.home.luguber.info/inful/tutorguard/internal/retry"
)

// ErrorResult is returned by Handle. Success is always false; it exists so the
// value can be returned as-is from call sites that report outcomes.
type ErrorResult struct {
	Success  bool              `json:"success"`
	Error    *errors.BaseError `json:"error"`
	Strategy recovery.Result   `json:"strategy"`
}

// Handler is safe for concurrent use.
type Handler struct {
	mu        sync.RWMutex
	ctx       Context
	listeners []listenerEntry
	nextID    atomic.Uint64

	table    *recovery.Table
	executor *retry.Executor
	logger   *slog.Logger
	recorder metrics.Recorder
	clock    clockwork.Clock
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger handled errors are written to.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(h *Handler) {
		if r != nil {
			h.recorder = r
		}
	}
}

// WithTable replaces the default recovery policy table.
func WithTable(t *recovery.Table) Option {
	return func(h *Handler) {
		if t != nil {
			h.table = t
		}
	}
}

// WithExecutor replaces the retry executor used by Retry.
func WithExecutor(ex *retry.Executor) Option {
	return func(h *Handler) {
		if ex != nil {
			h.executor = ex
		}
	}
}

// WithClock sets the clock used for context and event timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithContext seeds the initial context. A zero Timestamp is filled in at construction.
func WithContext(c Context) Option {
	return func(h *Handler) { h.ctx = c.clone() }
}

// New creates a Handler with the default policy table, a no-op recorder and
// slog.Default. Unless WithExecutor is given, the retry executor shares the
// handler's logger, recorder and clock.
func New(opts ...Option) *Handler {
	h := &Handler{
		table:    recovery.NewTable(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.ctx.Timestamp.IsZero() {
		h.ctx.Timestamp = h.clock.Now()
	}
	if h.executor == nil {
		h.executor = retry.NewExecutor(
			retry.WithLogger(h.logger),
			retry.WithRecorder(h.recorder),
			retry.WithClock(h.clock),
		)
	}
	return h
}

// Handle turns input into a BaseError, logs it, notifies listeners and returns
// the recommended recovery strategy. It never panics and never acts on the
// recommendation.
func (h *Handler) Handle(input any, hint ...errors.ErrorCategory) ErrorResult {
	return h.handle(h.Context(), input, hint)
}

// HandleWith is Handle with patch merged over the live context for this call
// only. The collector uses it to keep the context reported by the service
// where the error happened.
func (h *Handler) HandleWith(patch Context, input any, hint ...errors.ErrorCategory) ErrorResult {
	return h.handle(h.Context().merge(patch), input, hint)
}

func (h *Handler) handle(snapshot Context, input any, hint []errors.ErrorCategory) ErrorResult {
	be := errors.ToBaseError(input, hint...)

	h.log(be, snapshot)
	strategy := h.safeStrategy(be)
	h.recorder.IncErrorHandled(string(be.Category), be.Severity.String())
	h.recorder.IncRecoveryRecommendation(string(be.Category), string(strategy.Action))

	h.notify(Event{
		ID:       uuid.New(),
		Time:     h.clock.Now(),
		Error:    be,
		Context:  snapshot,
		Strategy: strategy,
	})

	return ErrorResult{Success: false, Error: be, Strategy: strategy}
}

// RecoveryStrategy looks up the recommendation for err. It has no side effects;
// two calls with no registration in between return equal results.
func (h *Handler) RecoveryStrategy(err *errors.BaseError) recovery.Result {
	return h.table.Strategy(err)
}

// RegisterRecoveryStrategy overrides the policy for one category. Results that
// were already returned are unaffected.
func (h *Handler) RegisterRecoveryStrategy(category errors.ErrorCategory, fn recovery.PolicyFunc) {
	h.table.Register(category, fn)
}

// Executor returns the retry executor shared by Retry.
func (h *Handler) Executor() *retry.Executor {
	return h.executor
}

// Logger returns the handler's logger.
func (h *Handler) Logger() *slog.Logger {
	return h.logger
}

// safeStrategy evaluates a possibly user-registered policy, treating a panic
// as "no recovery".
func (h *Handler) safeStrategy(be *errors.BaseError) (res recovery.Result) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Recovery policy panicked",
				logfields.ErrorCategory(string(be.Category)),
				slog.String(logfields.KeyError, fmt.Sprint(r)))
			res = recovery.Unrecoverable
		}
	}()
	return h.RecoveryStrategy(be)
}

func (h *Handler) log(be *errors.BaseError, c Context) {
	attrs := append(c.attrs(),
		logfields.ErrorCode(be.Code),
		logfields.ErrorMessage(be.Message),
		logfields.ErrorCategory(string(be.Category)),
		logfields.ErrorSeverity(be.Severity.String()),
	)
	h.logger.LogAttrs(context.Background(), errors.SlogLevel(be.Severity), logMessage(be), attrs...)
}

// logMessage prefixes the message so HIGH and CRITICAL records stay
// distinguishable even though both are logged at error level.
func logMessage(be *errors.BaseError) string {
	switch be.Severity {
	case errors.SeverityCritical:
		return "CRITICAL ERROR: " + be.Message
	case errors.SeverityHigh:
		return "Error: " + be.Message
	case errors.SeverityMedium:
		return "Warning: " + be.Message
	default:
		return "Minor error: " + be.Message
	}
}
