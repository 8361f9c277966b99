package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Logging.Format)
	require.Equal(t, RetryBackoffExponential, cfg.Retry.Mode)
	require.Equal(t, time.Second, cfg.Retry.InitialDelayDuration())
	require.Equal(t, 10*time.Second, cfg.Retry.MaxDelayDuration())
	require.InDelta(t, 2.0, cfg.Retry.Multiplier, 0)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, 720*time.Hour, cfg.Journal.RetentionDuration())
	require.Equal(t, "tutor.errors", cfg.Stream.Subject)
	require.NoError(t, cfg.Validate())
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("TUTOR_SESSION", "sess-42")
	cfg, err := Parse([]byte(`
logging:
  level: DEBUG
  format: json
context:
  session_id: ${TUTOR_SESSION}
  metadata:
    app: tutor
recovery:
  delays:
    api: 5s
retry:
  mode: Linear
  initial_delay: 250ms
  max_attempts: 5
`))
	require.NoError(t, err)
	require.Equal(t, LogLevelDebug, cfg.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Logging.Format)
	require.Equal(t, "sess-42", cfg.Context.SessionID)
	require.Equal(t, RetryBackoffLinear, cfg.Retry.Mode)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelayDuration())
	require.Equal(t, 5, cfg.Retry.MaxAttempts)

	overrides, err := cfg.Recovery.DelayOverrides()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, overrides[errors.CategoryAPI])
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad mode", "retry:\n  mode: random\n", "retry.mode"},
		{"bad initial", "retry:\n  initial_delay: soon\n", "retry.initial_delay"},
		{"bad multiplier", "retry:\n  multiplier: 0.5\n", "retry.multiplier"},
		{"negative attempts", "retry:\n  max_attempts: -1\n", "retry.max_attempts"},
		{"unknown category", "recovery:\n  delays:\n    git: 1s\n", "recovery.delays"},
		{"bad retention", "journal:\n  retention: forever\n", "journal.retention"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			d, ok := errors.IsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			require.Equal(t, []string{tt.field}, d.Fields)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("logging: [unterminated"))
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("missing.yaml")
	require.Error(t, err)
	_, ok := errors.IsFileError(err)
	require.True(t, ok)

	cfg, err := LoadOptional("missing.yaml")
	require.NoError(t, err)
	require.Equal(t, "tutorguard.db", cfg.Journal.Path)
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("TUTORGUARD_TEST_USER=learner-7\n"), 0o600))
	require.NoError(t, os.WriteFile("c.yaml", []byte("context:\n  user_id: ${TUTORGUARD_TEST_USER}\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TUTORGUARD_TEST_USER") })

	cfg, err := Load("c.yaml")
	require.NoError(t, err)
	require.Equal(t, "learner-7", cfg.Context.UserID)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutorguard.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
	require.NoError(t, Init(path, true))

	t.Chdir(t.TempDir())
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "tutor", cfg.Context.Metadata["app"])
	require.Equal(t, "3s", cfg.Recovery.Delays["API"])
}

func TestNormalizers(t *testing.T) {
	require.Equal(t, LogLevelWarn, NormalizeLogLevel("WARNING"))
	require.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	require.Equal(t, LogFormatText, NormalizeLogFormat("yaml"))
	require.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff(" FIXED "))
	require.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("weird"))
}
