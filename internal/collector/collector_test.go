package collector

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutorguard/internal/config"
	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/errorstream"
	"git.home.luguber.info/inful/tutorguard/internal/journal"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newCollector(t *testing.T, opts ...Option) (*Collector, *journal.SQLiteStore, *errorhandler.Handler) {
	t.Helper()
	store, err := journal.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := errorhandler.New(errorhandler.WithLogger(quietLogger()))
	c, err := New(config.Default(), h, store, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return c, store, h
}

type fakeSource struct {
	envelopes []errorstream.Envelope
	stopped   chan struct{}
}

func (f *fakeSource) Subscribe(ctx context.Context, fn errorstream.EnvelopeFunc) (func(), error) {
	for _, env := range f.envelopes {
		if err := fn(ctx, env); err != nil {
			return nil, err
		}
	}
	return func() { close(f.stopped) }, nil
}

func envelope(id string) errorstream.Envelope {
	return errorstream.Envelope{
		ID:         id,
		Time:       time.Now().UTC(),
		Source:     "chat-proxy",
		Code:       "503",
		Message:    "llm upstream unavailable",
		Category:   errors.CategoryAPI,
		Severity:   errors.SeverityHigh,
		StatusCode: 503,
		Context:    errorstream.EnvelopeContext{SessionID: "s-1", Endpoint: "/api/chat", Method: "POST"},
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(config.Default(), nil, nil)
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestProcess_JournalsEnvelopeWithRemoteContext(t *testing.T) {
	c, store, h := newCollector(t)

	var strategies []string
	h.OnError(func(e errorhandler.Event) { strategies = append(strategies, string(e.Strategy.Action)) })

	require.NoError(t, c.Process(t.Context(), envelope("env-1")))

	records, err := store.List(t.Context(), journal.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	require.Equal(t, "503", r.Code)
	require.Equal(t, errors.CategoryAPI, r.Category)
	require.Equal(t, errors.SeverityHigh, r.Severity)
	require.Equal(t, "s-1", r.SessionID)
	require.Equal(t, "/api/chat", r.Endpoint)
	require.Equal(t, "retry", r.Action)
	require.Equal(t, int64(3000), r.DelayMS)
	require.Equal(t, "chat-proxy", r.Metadata["source"])
	require.Equal(t, "env-1", r.Metadata["envelope_id"])
	require.Equal(t, []string{"retry"}, strategies)

	// The handler's own context is not modified.
	require.Empty(t, h.Context().SessionID)
}

func TestProcess_CanceledContext(t *testing.T) {
	c, store, _ := newCollector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, c.Process(ctx, envelope("env-2")))
	records, err := store.List(t.Context(), journal.Filter{})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestPruneOnce_UsesRetention(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(now)
	c, store, _ := newCollector(t, WithClock(fc))

	ctx := t.Context()
	for id, age := range map[string]time.Duration{"old": 800 * time.Hour, "fresh": time.Hour} {
		require.NoError(t, store.Append(ctx, journal.Record{
			ID:         id,
			OccurredAt: now.Add(-age),
			Code:       errors.CodeNetwork,
			Category:   errors.CategoryNetwork,
			Severity:   errors.SeverityMedium,
			Message:    "reset",
			Action:     "retry",
		}))
	}

	n, err := c.PruneOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	left, err := store.List(ctx, journal.Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "fresh", left[0].ID)
}

func TestRun_ConsumesSourceUntilCanceled(t *testing.T) {
	src := &fakeSource{
		envelopes: []errorstream.Envelope{envelope("a"), envelope("b")},
		stopped:   make(chan struct{}),
	}
	c, store, _ := newCollector(t, WithSource(src))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		records, err := store.List(context.Background(), journal.Filter{})
		return err == nil && len(records) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop")
	}
	select {
	case <-src.stopped:
	default:
		t.Fatal("subscription was not stopped")
	}
	require.Len(t, c.scheduler.Jobs(), 0)
}

func TestSchedulePrune_RegistersJob(t *testing.T) {
	c, _, _ := newCollector(t)
	id, err := c.schedulePrune(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	jobs := c.scheduler.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, "journal-prune", jobs[0].Name())
	require.NoError(t, c.scheduler.Shutdown())
}
