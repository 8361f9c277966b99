package config

const (
	defaultInitialDelay  = "1s"
	defaultMaxDelay      = "10s"
	defaultMultiplier    = 2.0
	defaultMaxAttempts   = 3
	defaultJournalPath   = "tutorguard.db"
	defaultRetention     = "720h"
	defaultPruneInterval = "1h"
	defaultNATSURL       = "nats://127.0.0.1:4222"
	defaultSubject       = "tutor.errors"
	defaultStream        = "TUTOR_ERRORS"
	defaultDurable       = "tutorguard-collector"
	defaultMetricsListen = ":9464"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	if cfg.Retry.Mode == "" {
		cfg.Retry.Mode = RetryBackoffExponential
	} else if m := NormalizeRetryBackoff(string(cfg.Retry.Mode)); m != "" {
		cfg.Retry.Mode = m
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = defaultInitialDelay
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = defaultMaxDelay
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = defaultMultiplier
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = defaultMaxAttempts
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Path = defaultJournalPath
	}
	if cfg.Journal.Retention == "" {
		cfg.Journal.Retention = defaultRetention
	}
	if cfg.Journal.PruneInterval == "" {
		cfg.Journal.PruneInterval = defaultPruneInterval
	}

	if cfg.Stream.NATSURL == "" {
		cfg.Stream.NATSURL = defaultNATSURL
	}
	if cfg.Stream.Subject == "" {
		cfg.Stream.Subject = defaultSubject
	}
	if cfg.Stream.Stream == "" {
		cfg.Stream.Stream = defaultStream
	}
	if cfg.Stream.Durable == "" {
		cfg.Stream.Durable = defaultDurable
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = defaultMetricsListen
	}
}
