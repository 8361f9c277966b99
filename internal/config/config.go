// Package config loads the tutorguard YAML configuration.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "tutorguard.yaml"

// Config is the root configuration document.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Retry    RetryConfig    `yaml:"retry"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Context  ContextConfig  `yaml:"context"`
	Journal  JournalConfig  `yaml:"journal"`
	Stream   StreamConfig   `yaml:"stream"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RecoveryConfig overrides the retry pause recommended for a category,
// e.g. {"API": "5s"}. Categories without an entry keep the built-in delay.
type RecoveryConfig struct {
	Delays map[string]string `yaml:"delays,omitempty"`
}

// ContextConfig seeds the coordinator's error context at start-up.
type ContextConfig struct {
	UserID    string            `yaml:"user_id,omitempty"`
	SessionID string            `yaml:"session_id,omitempty"`
	Endpoint  string            `yaml:"endpoint,omitempty"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
}

// JournalConfig locates the SQLite error journal and its retention.
type JournalConfig struct {
	Path          string `yaml:"path"`
	Retention     string `yaml:"retention"`
	PruneInterval string `yaml:"prune_interval"`
}

// StreamConfig configures the NATS JetStream error stream.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
	Durable string `yaml:"durable"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads, expands and validates the configuration at path. Environment
// variables from .env files are loaded first so ${VAR} references resolve.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileError("read", path, "configuration file not readable").WithCause(err)
	}
	return Parse(data)
}

// LoadOptional behaves like Load but returns defaults when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
		if err := loadEnvFiles(); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
		cfg := Default()
		return cfg, nil
	}
	return Load(path)
}

// Parse decodes YAML (after ${VAR} expansion), applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.NewValidationError("configuration is not valid YAML").WithCause(err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.NewValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path), "path")
	}

	example := Default()
	example.Context.Metadata = map[string]string{"app": "tutor"}
	example.Recovery.Delays = map[string]string{"API": "3s"}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.NewFileError("write", path, "failed to write configuration").WithCause(err)
	}
	return nil
}

// InitialDelayDuration returns the parsed retry initial delay.
func (r RetryConfig) InitialDelayDuration() time.Duration { return mustDuration(r.InitialDelay) }

// MaxDelayDuration returns the parsed retry delay cap.
func (r RetryConfig) MaxDelayDuration() time.Duration { return mustDuration(r.MaxDelay) }

// RetentionDuration returns how long journal records are kept.
func (j JournalConfig) RetentionDuration() time.Duration { return mustDuration(j.Retention) }

// PruneIntervalDuration returns how often the journal is pruned.
func (j JournalConfig) PruneIntervalDuration() time.Duration { return mustDuration(j.PruneInterval) }

// DelayOverrides parses the per-category retry delays.
func (r RecoveryConfig) DelayOverrides() (map[errors.ErrorCategory]time.Duration, error) {
	out := make(map[errors.ErrorCategory]time.Duration, len(r.Delays))
	for raw, d := range r.Delays {
		category, err := errors.ParseCategory(raw)
		if err != nil {
			return nil, errors.NewValidationError(err.Error(), "recovery.delays")
		}
		dur, err := time.ParseDuration(d)
		if err != nil || dur <= 0 {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid delay %q for %s", d, category), "recovery.delays")
		}
		out[category] = dur
	}
	return out, nil
}

// mustDuration parses a duration already checked by Validate; bad input yields 0.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
