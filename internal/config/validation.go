package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// Validate checks invariants after defaults are applied. Errors are VALIDATION
// BaseErrors naming the offending field.
func (c *Config) Validate() error {
	if NormalizeRetryBackoff(string(c.Retry.Mode)) == "" {
		return invalid("retry.mode", "unsupported backoff mode %q", c.Retry.Mode)
	}
	initial, err := time.ParseDuration(c.Retry.InitialDelay)
	if err != nil || initial <= 0 {
		return invalid("retry.initial_delay", "must be a positive duration, got %q", c.Retry.InitialDelay)
	}
	maxDelay, err := time.ParseDuration(c.Retry.MaxDelay)
	if err != nil || maxDelay <= 0 {
		return invalid("retry.max_delay", "must be a positive duration, got %q", c.Retry.MaxDelay)
	}
	if c.Retry.Multiplier < 1 {
		return invalid("retry.multiplier", "must be >= 1, got %v", c.Retry.Multiplier)
	}
	if c.Retry.MaxAttempts < 0 {
		return invalid("retry.max_attempts", "cannot be negative")
	}
	if _, err := c.Recovery.DelayOverrides(); err != nil {
		return err
	}
	for field, raw := range map[string]string{
		"journal.retention":      c.Journal.Retention,
		"journal.prune_interval": c.Journal.PruneInterval,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return invalid(field, "must be a positive duration, got %q", raw)
		}
	}
	if c.Stream.Enabled && c.Stream.Subject == "" {
		return invalid("stream.subject", "required when the stream is enabled")
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return errors.NewValidationError(field+": "+fmt.Sprintf(format, args...), field)
}
