package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/logfields"
	"git.home.luguber.info/inful/tutorguard/internal/metrics"
)

// Executor drives retry sequences. The zero value is not usable; use NewExecutor.
type Executor struct {
	clock    clockwork.Clock
	recorder metrics.Recorder
	logger   *slog.Logger
	onRetry  func(attempt int, delay time.Duration, err *errors.BaseError)
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock swaps the clock used for backoff pauses (fake clocks in tests).
func WithClock(c clockwork.Clock) Option {
	return func(e *Executor) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOnRetry registers a hook invoked before each backoff pause.
func WithOnRetry(fn func(attempt int, delay time.Duration, err *errors.BaseError)) Option {
	return func(e *Executor) { e.onRetry = fn }
}

// NewExecutor creates an executor backed by the real clock.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		clock:    clockwork.NewRealClock(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExecutor = NewExecutor()

// Do invokes op up to policy.MaxAttempts times. It returns on the first success.
// A failure is normalized; if policy.ShouldRetry rejects it the sequence stops
// with that error. Otherwise Do pauses for policy.Delay(attempt) and tries again.
// Exhausting every attempt surfaces the last error. With MaxAttempts 0 op is
// never called and the result wraps MAX_RETRIES_EXCEEDED.
//
// The pause only blocks the calling goroutine. Cancelling ctx ends the sequence
// with a RETRY_CANCELED error wrapping ctx.Err().
func Do[T any](ctx context.Context, ex *Executor, policy Policy, op func(context.Context) (T, error)) Result[T] {
	if ex == nil {
		ex = defaultExecutor
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var last *errors.BaseError
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			ex.recorder.IncRetryAttempt(metrics.RetryCanceled)
			return Fail[T](errors.RetryCanceled(err))
		}

		data, err := invoke(ctx, op)
		if err == nil {
			ex.recorder.IncRetryAttempt(metrics.RetrySuccess)
			return Ok(data)
		}

		last = errors.ToBaseError(err)
		if policy.ShouldRetry != nil && !policy.ShouldRetry(last, attempt) {
			ex.recorder.IncRetryAttempt(metrics.RetryAborted)
			return Fail[T](last)
		}
		ex.recorder.IncRetryAttempt(metrics.RetryFailure)

		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := policy.Delay(attempt)
		ex.recorder.ObserveRetryDelay(delay)
		if ex.onRetry != nil {
			ex.onRetry(attempt, delay, last)
		}
		ex.logger.LogAttrs(ctx, slog.LevelDebug, "Retrying operation",
			logfields.Attempt(attempt+1),
			logfields.DelayMS(delay.Milliseconds()),
			logfields.ErrorCode(last.Code),
			logfields.ErrorCategory(string(last.Category)))

		if err := ex.sleep(ctx, delay); err != nil {
			ex.recorder.IncRetryAttempt(metrics.RetryCanceled)
			return Fail[T](errors.RetryCanceled(err))
		}
	}

	if last == nil {
		return Fail[T](errors.MaxRetriesExceeded())
	}
	ex.recorder.IncRetryExhausted()
	return Fail[T](last)
}

// invoke runs op, converting a panic into a CRITICAL error so one bad attempt
// cannot take the caller down.
func invoke[T any](ctx context.Context, op func(context.Context) (T, error)) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CategoryUnknown, errors.SeverityCritical, errors.CodePanic,
				fmt.Sprintf("operation panicked: %v", r)).WithCause(r)
		}
	}()
	return op(ctx)
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := e.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
