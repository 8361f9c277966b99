// Package logging builds the slog handlers used by tutorguard commands.
package logging

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"git.home.luguber.info/inful/tutorguard/internal/config"
)

// Level maps a configured level onto slog. Unknown levels are info.
func Level(l config.LogLevel) slog.Level {
	switch config.NormalizeLogLevel(string(l)) {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler returns a tint console handler for text output or a JSON handler,
// wrapped so request attributes stored on the context are added to every record.
// verbose forces debug level.
func NewHandler(w io.Writer, cfg config.LoggingConfig, verbose bool) slog.Handler {
	level := Level(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	var h slog.Handler
	if config.NormalizeLogFormat(string(cfg.Format)) == config.LogFormatJSON {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}
	return &contextHandler{Handler: h}
}

// New builds a logger from cfg.
func New(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	return slog.New(NewHandler(w, cfg, verbose))
}

// contextHandler decorates records with the Request stored on the context.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := requestAttrs(ctx); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
