package commands

import (
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/tutorguard/internal/collector"
	"git.home.luguber.info/inful/tutorguard/internal/config"
	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errorstream"
	"git.home.luguber.info/inful/tutorguard/internal/journal"
	"git.home.luguber.info/inful/tutorguard/internal/metrics"
)

// CollectCmd implements the 'collect' command.
type CollectCmd struct {
	Journal string `help:"Journal database path (overrides journal.path)"`
	Watch   bool   `help:"Reload recovery delays and context when the configuration file changes" default:"true" negatable:""`
}

func (c *CollectCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if c.Journal != "" {
		cfg.Journal.Path = c.Journal
	}
	logger := g.logger()

	ctx, cancel := signal.NotifyContext(g.context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metrics.NewRegistry()
	h, err := NewHandler(cfg, logger, metrics.NewPrometheusRecorder(reg))
	if err != nil {
		return err
	}
	errorhandler.Initialize(h)

	store, err := journal.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("Failed to close journal", "error", cerr)
		}
	}()

	opts := []collector.Option{collector.WithRegistry(reg), collector.WithLogger(logger)}
	if cfg.Stream.Enabled {
		client, err := errorstream.Connect(ctx, cfg.Stream, logger)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		opts = append(opts, collector.WithSource(client))
	}

	if c.Watch {
		if _, err := os.Stat(root.Config); err == nil {
			w, err := config.NewWatcher(root.Config, func(next *config.Config) {
				if err := ApplyReload(h, next); err != nil {
					logger.Error("Failed to apply reloaded configuration", "error", err)
				}
			}, config.WithWatcherLogger(logger))
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()
		}
	}

	col, err := collector.New(cfg, h, store, opts...)
	if err != nil {
		return err
	}

	logger.Info("Collector started, waiting for shutdown signal...",
		"journal", cfg.Journal.Path,
		"stream", cfg.Stream.Enabled,
		"metrics", cfg.Metrics.Enabled)
	if err := col.Run(ctx); err != nil {
		return err
	}
	logger.Info("Collector stopped")
	return nil
}

