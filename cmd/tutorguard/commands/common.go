// Package commands implements the tutorguard subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tutorguard/internal/config"
	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/logging"
	"git.home.luguber.info/inful/tutorguard/internal/metrics"
	"git.home.luguber.info/inful/tutorguard/internal/recovery"
)

// Global carries process state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
	In     io.Reader
	Ctx    context.Context
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) in() io.Reader {
	if g == nil || g.In == nil {
		return os.Stdin
	}
	return g.In
}

func (g *Global) context() context.Context {
	if g == nil || g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"tutorguard.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Classify ClassifyCmd `cmd:"" help:"Classify JSON error objects and print the recommended recovery"`
	Probe    ProbeCmd    `cmd:"" help:"GET a URL with retries and report the outcome"`
	Collect  CollectCmd  `cmd:"" help:"Consume the error stream, journal handled errors and serve metrics"`
	Journal  JournalCmd  `cmd:"" help:"Inspect or prune the error journal"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once. A configuration
// that fails to load falls back to default logging so the command itself
// reports the problem.
func (c *CLI) AfterApply(g *Global) error {
	logCfg := config.Default().Logging
	if cfg, err := c.LoadConfig(); err == nil {
		logCfg = cfg.Logging
	}
	logger := logging.New(os.Stderr, logCfg, c.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

// LoadConfig reads --config, returning defaults when the file does not exist.
func (c *CLI) LoadConfig() (*config.Config, error) {
	return config.LoadOptional(c.Config)
}

// NewHandler builds a coordinator from cfg: delay overrides applied to the
// default policy table and the configured context as the initial context.
// A nil recorder disables metrics.
func NewHandler(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) (*errorhandler.Handler, error) {
	delays, err := cfg.Recovery.DelayOverrides()
	if err != nil {
		return nil, err
	}
	table := recovery.NewTable()
	table.ApplyDelayOverrides(delays)

	opts := []errorhandler.Option{
		errorhandler.WithLogger(logger),
		errorhandler.WithTable(table),
		errorhandler.WithContext(handlerContext(cfg.Context)),
	}
	if recorder != nil {
		opts = append(opts, errorhandler.WithRecorder(recorder))
	}
	return errorhandler.New(opts...), nil
}

// ApplyReload brings a running handler in line with cfg. Every category's
// policy is reset to the built-in one with cfg's delay override, and cfg's
// context is merged over the current one.
func ApplyReload(h *errorhandler.Handler, cfg *config.Config) error {
	delays, err := cfg.Recovery.DelayOverrides()
	if err != nil {
		return err
	}
	defaults := recovery.DefaultPolicies()
	for _, category := range errors.Categories {
		fn := defaults[category]
		if d, ok := delays[category]; ok && fn != nil {
			fn = recovery.WithRetryDelay(fn, d)
		}
		h.RegisterRecoveryStrategy(category, fn)
	}
	h.UpdateContext(handlerContext(cfg.Context))
	return nil
}

func handlerContext(c config.ContextConfig) errorhandler.Context {
	hc := errorhandler.Context{
		UserID:    c.UserID,
		SessionID: c.SessionID,
		Endpoint:  c.Endpoint,
	}
	if len(c.Metadata) > 0 {
		hc.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			hc.Metadata[k] = v
		}
	}
	return hc
}
