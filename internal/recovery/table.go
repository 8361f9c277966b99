// Package recovery maps error categories to recommended recovery actions.
//
// A Table only recommends. It never retries, falls back or aborts on its own;
// callers act on the returned Result.
package recovery

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// Action is the recommended response to a classified failure.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionFallback Action = "fallback"
	ActionNotify   Action = "notify"
	ActionAbort    Action = "abort"
)

// Result is computed fresh for every lookup. Delay is zero when the action carries none.
type Result struct {
	CanRecover bool          `json:"canRecover"`
	Action     Action        `json:"action"`
	Delay      time.Duration `json:"delay,omitempty"`
}

// PolicyFunc computes the recovery recommendation for one error.
type PolicyFunc func(*errors.BaseError) Result

// Unrecoverable is the recommendation used when no policy is registered for a category.
var Unrecoverable = Result{CanRecover: false, Action: ActionNotify}

// retryableStatuses are the API statuses worth retrying after a pause.
var retryableStatuses = map[int]bool{429: true, 502: true, 503: true, 504: true}

// Table holds one policy per category. It is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	policies map[errors.ErrorCategory]PolicyFunc
}

// NewTable returns a table pre-populated with the default policies.
func NewTable() *Table {
	return &Table{policies: DefaultPolicies()}
}

// DefaultPolicies returns a fresh copy of the built-in policy set.
func DefaultPolicies() map[errors.ErrorCategory]PolicyFunc {
	return map[errors.ErrorCategory]PolicyFunc{
		errors.CategoryNetwork:    retryAfter(2000 * time.Millisecond),
		errors.CategoryAPI:        apiPolicy,
		errors.CategoryValidation: fixed(Result{CanRecover: false, Action: ActionAbort}),
		errors.CategoryAuth:       fixed(Result{CanRecover: true, Action: ActionFallback}),
		errors.CategoryFile:       fixed(Result{CanRecover: false, Action: ActionNotify}),
		errors.CategoryAudio:      retryAfter(1000 * time.Millisecond),
		errors.CategoryTTS:        retryAfter(2000 * time.Millisecond),
		errors.CategoryStorage:    fixed(Result{CanRecover: false, Action: ActionNotify}),
	}
}

func apiPolicy(err *errors.BaseError) Result {
	status := 0
	if err != nil {
		status = err.StatusCode()
	}
	switch {
	case retryableStatuses[status]:
		return Result{CanRecover: true, Action: ActionRetry, Delay: 3000 * time.Millisecond}
	case status == 401:
		return Result{CanRecover: true, Action: ActionFallback}
	default:
		return Result{CanRecover: false, Action: ActionNotify}
	}
}

func retryAfter(d time.Duration) PolicyFunc {
	return fixed(Result{CanRecover: true, Action: ActionRetry, Delay: d})
}

func fixed(r Result) PolicyFunc {
	return func(*errors.BaseError) Result { return r }
}

// Register replaces the policy for category. The last registration wins; a nil
// fn removes the policy so the category resolves to Unrecoverable.
func (t *Table) Register(category errors.ErrorCategory, fn PolicyFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fn == nil {
		delete(t.policies, category)
		return
	}
	t.policies[category] = fn
}

// Resolve returns the policy for category, or one yielding Unrecoverable.
func (t *Table) Resolve(category errors.ErrorCategory) PolicyFunc {
	t.mu.RLock()
	fn, ok := t.policies[category]
	t.mu.RUnlock()
	if !ok {
		return fixed(Unrecoverable)
	}
	return fn
}

// Strategy looks up and evaluates the policy for err. It has no side effects.
func (t *Table) Strategy(err *errors.BaseError) Result {
	if err == nil {
		return Unrecoverable
	}
	return t.Resolve(err.Category)(err)
}

// WithRetryDelay wraps fn so that retry recommendations use delay instead of
// the built-in pause. Non-retry results pass through unchanged.
func WithRetryDelay(fn PolicyFunc, delay time.Duration) PolicyFunc {
	return func(err *errors.BaseError) Result {
		r := fn(err)
		if r.Action == ActionRetry && delay > 0 {
			r.Delay = delay
		}
		return r
	}
}

// ApplyDelayOverrides rewrites the retry delay of configured categories.
func (t *Table) ApplyDelayOverrides(delays map[errors.ErrorCategory]time.Duration) {
	for category, delay := range delays {
		t.Register(category, WithRetryDelay(t.Resolve(category), delay))
	}
}
