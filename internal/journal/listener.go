package journal

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/logfields"
)

// DefaultAppendTimeout bounds a single journal write made from a listener.
const DefaultAppendTimeout = 2 * time.Second

// Listener journals every handled error. Write failures are logged and dropped;
// they never reach the code that called Handle.
func Listener(store Store, timeout time.Duration, logger *slog.Logger) errorhandler.Listener {
	if timeout <= 0 {
		timeout = DefaultAppendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(e errorhandler.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := store.Append(ctx, RecordFromEvent(e)); err != nil {
			logger.Warn("Failed to journal handled error",
				logfields.EventID(e.ID.String()),
				logfields.Error(err))
		}
	}
}
