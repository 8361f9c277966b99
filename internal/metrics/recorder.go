package metrics

import "time"

// Recorder defines observability hooks for the error coordinator and the retry
// executor. Implementations may forward to Prometheus; NoopRecorder is the default.
type Recorder interface {
	IncErrorHandled(category, severity string)
	IncRecoveryRecommendation(category, action string)
	IncListenerPanic()
	IncRetryAttempt(outcome RetryOutcome)
	ObserveRetryDelay(d time.Duration)
	IncRetryExhausted()
}

// RetryOutcome labels the result of a single attempt made by the retry executor.
type RetryOutcome string

const (
	RetrySuccess  RetryOutcome = "success"
	RetryFailure  RetryOutcome = "failure"
	RetryAborted  RetryOutcome = "aborted"
	RetryCanceled RetryOutcome = "canceled"
)

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncErrorHandled(string, string)           {}
func (NoopRecorder) IncRecoveryRecommendation(string, string) {}
func (NoopRecorder) IncListenerPanic()                        {}
func (NoopRecorder) IncRetryAttempt(RetryOutcome)             {}
func (NoopRecorder) ObserveRetryDelay(time.Duration)          {}
func (NoopRecorder) IncRetryExhausted()                       {}
