// Package collector implements the long-running process behind
// `tutorguard collect`: it consumes error envelopes published by the tutoring
// services, routes each through the error handler and journals the result.
package collector

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/tutorguard/internal/config"
	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/errorstream"
	"git.home.luguber.info/inful/tutorguard/internal/journal"
	"git.home.luguber.info/inful/tutorguard/internal/logfields"
	"git.home.luguber.info/inful/tutorguard/internal/logging"
	"git.home.luguber.info/inful/tutorguard/internal/metrics"
)

// Source delivers envelopes to fn until the returned stop function is called.
// *errorstream.Client satisfies it.
type Source interface {
	Subscribe(ctx context.Context, fn errorstream.EnvelopeFunc) (func(), error)
}

// Collector wires the stream, handler, journal and metrics endpoint together.
type Collector struct {
	handler   *errorhandler.Handler
	store     journal.Store
	source    Source
	registry  *prom.Registry
	logger    *slog.Logger
	clock     clockwork.Clock
	scheduler gocron.Scheduler

	retention     time.Duration
	pruneInterval time.Duration
	metricsAddr   string
	server        *http.Server
}

// Option configures a Collector.
type Option func(*Collector)

// WithSource sets the envelope source. Without one the collector only prunes
// and serves metrics.
func WithSource(s Source) Option { return func(c *Collector) { c.source = s } }

// WithRegistry serves reg on the metrics listener.
func WithRegistry(reg *prom.Registry) Option { return func(c *Collector) { c.registry = reg } }

// WithLogger sets the collector's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the clock used for prune cutoffs and the scheduler.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Collector) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// New builds a collector. The journal listener is attached to h here, so every
// envelope handled afterwards is journaled.
func New(cfg *config.Config, h *errorhandler.Handler, store journal.Store, opts ...Option) (*Collector, error) {
	if h == nil || store == nil {
		return nil, errors.NewValidationError("collector requires a handler and a journal store")
	}
	c := &Collector{
		handler:       h,
		store:         store,
		logger:        slog.Default(),
		clock:         clockwork.NewRealClock(),
		retention:     cfg.Journal.RetentionDuration(),
		pruneInterval: cfg.Journal.PruneIntervalDuration(),
	}
	if cfg.Metrics.Enabled {
		c.metricsAddr = cfg.Metrics.Listen
	}
	for _, opt := range opts {
		opt(c)
	}

	s, err := gocron.NewScheduler(gocron.WithClock(c.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	c.scheduler = s

	h.OnError(journal.Listener(store, journal.DefaultAppendTimeout, c.logger))
	return c, nil
}

// Process routes one envelope through the handler. The envelope's own context
// is used for this call, tagged with the reporting service.
func (c *Collector) Process(ctx context.Context, env errorstream.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hc := env.HandlerContext()
	md := maps.Clone(hc.Metadata)
	if md == nil {
		md = map[string]any{}
	}
	if env.Source != "" {
		md["source"] = env.Source
	}
	md["envelope_id"] = env.ID
	hc.Metadata = md

	res := c.handler.HandleWith(hc, env.BaseError())

	lctx := logging.WithRequest(ctx, logging.Request{SessionID: hc.SessionID, UserID: hc.UserID, Endpoint: hc.Endpoint, Method: hc.Method})
	c.logger.DebugContext(lctx, "Collected error envelope",
		logfields.EventID(env.ID),
		logfields.Action(string(res.Strategy.Action)))
	return nil
}

// PruneOnce removes journal records older than the retention window.
func (c *Collector) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := c.clock.Now().Add(-c.retention)
	n, err := c.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	c.logger.Info("Pruned error journal", slog.Int64("removed", n), slog.Time("cutoff", cutoff))
	return n, nil
}

func (c *Collector) prune(ctx context.Context) {
	if _, err := c.PruneOnce(ctx); err != nil {
		c.handler.Handle(err, errors.CategoryStorage)
	}
}

// schedulePrune registers the periodic prune job and returns its ID.
func (c *Collector) schedulePrune(ctx context.Context) (string, error) {
	job, err := c.scheduler.NewJob(
		gocron.DurationJob(c.pruneInterval),
		gocron.NewTask(c.prune),
		gocron.WithContext(ctx),
		gocron.WithName("journal-prune"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create journal prune job: %w", err)
	}
	return job.ID().String(), nil
}

// Run blocks until ctx is canceled or the metrics server fails.
func (c *Collector) Run(ctx context.Context) error {
	if _, err := c.schedulePrune(ctx); err != nil {
		return err
	}
	c.logger.Info("Starting scheduler")
	c.scheduler.Start()
	defer func() {
		c.logger.Info("Stopping scheduler")
		if err := c.scheduler.Shutdown(); err != nil {
			c.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	if c.source != nil {
		stop, err := c.source.Subscribe(ctx, c.Process)
		if err != nil {
			return err
		}
		defer stop()
	}

	serverErr := make(chan error, 1)
	if c.metricsAddr != "" {
		c.server = c.newServer()
		go func() {
			c.logger.Info("Serving metrics", slog.String("addr", c.metricsAddr))
			if err := c.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = errors.NewNetworkError("listen", fmt.Sprintf("metrics server failed: %v", err), false).WithCause(err)
	}

	if c.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Metrics server shutdown failed", logfields.Error(err))
		}
	}
	return runErr
}

func (c *Collector) newServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(c.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              c.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
