package retry

import (
	"fmt"
	"math"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/config"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// ShouldRetryFunc decides whether a failed attempt (0-based) is worth repeating.
type ShouldRetryFunc func(err *errors.BaseError, attempt int) bool

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode        config.RetryBackoffMode // fixed|linear|exponential
	Initial     time.Duration           // base delay
	Max         time.Duration           // cap for growth
	Multiplier  float64                 // growth factor for exponential mode
	MaxAttempts int                     // total invocations, the first one included
	ShouldRetry ShouldRetryFunc         // nil retries every failure
}

// DefaultPolicy returns the policy used when a call site has no specific needs:
// exponential, 1s initial, 10s cap, x2, 3 attempts, transient failures only.
func DefaultPolicy() Policy {
	return Policy{
		Mode:        config.RetryBackoffExponential,
		Initial:     time.Second,
		Max:         10 * time.Second,
		Multiplier:  2,
		MaxAttempts: 3,
		ShouldRetry: RetryTransient,
	}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, multiplier float64, maxAttempts int) Policy {
	p := DefaultPolicy()
	if maxAttempts >= 0 {
		p.MaxAttempts = maxAttempts
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if multiplier >= 1 {
		p.Multiplier = multiplier
	}
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds a policy from the retry section of the configuration.
func FromConfig(c config.RetryConfig) Policy {
	return NewPolicy(c.Mode, c.InitialDelayDuration(), c.MaxDelayDuration(), c.Multiplier, c.MaxAttempts)
}

// WithShouldRetry returns a copy of p using fn as its retry predicate.
func (p Policy) WithShouldRetry(fn ShouldRetryFunc) Policy {
	p.ShouldRetry = fn
	return p
}

// WithMaxAttempts returns a copy of p allowing n invocations.
func (p Policy) WithMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// Delay returns the pause after the given failed attempt (0-based: first failure => 0).
// Exponential mode yields min(Initial * Multiplier^attempt, Max).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	var d float64
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = float64(p.Initial)
	case config.RetryBackoffLinear:
		d = float64(attempt+1) * float64(p.Initial)
	default: // exponential
		mult := p.Multiplier
		if mult <= 0 {
			mult = 1
		}
		d = float64(p.Initial) * math.Pow(mult, float64(attempt))
	}
	if p.Max > 0 && (d > float64(p.Max) || math.IsInf(d, 0) || math.IsNaN(d)) {
		return p.Max
	}
	return time.Duration(d)
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >=1")
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max attempts cannot be negative")
	}
	return nil
}

// Always retries every failure.
func Always(*errors.BaseError, int) bool { return true }

// RetryTransient retries network, audio and TTS failures plus API 429/5xx.
func RetryTransient(err *errors.BaseError, _ int) bool {
	if err == nil {
		return false
	}
	switch err.Category {
	case errors.CategoryNetwork, errors.CategoryAudio, errors.CategoryTTS:
		return true
	case errors.CategoryAPI:
		status := err.StatusCode()
		return status == 429 || status >= 500
	default:
		return false
	}
}
