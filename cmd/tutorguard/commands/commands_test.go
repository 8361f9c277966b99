package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/journal"
	"git.home.luguber.info/inful/tutorguard/internal/recovery"
)

const testConfig = `
logging:
  level: debug
retry:
  mode: fixed
  initial_delay: 1ms
  max_delay: 2ms
  max_attempts: 3
recovery:
  delays:
    API: 5s
context:
  session_id: sess-42
  metadata:
    app: tutor
journal:
  path: %JOURNAL%
`

// testEnv is a temporary workspace with a config file and captured output.
type testEnv struct {
	root   *CLI
	global *Global
	out    *bytes.Buffer
	logs   *bytes.Buffer
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")
	cfgPath := filepath.Join(dir, "tutorguard.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(strings.ReplaceAll(testConfig, "%JOURNAL%", dbPath)), 0o600))

	env := &testEnv{
		root:   &CLI{Config: cfgPath},
		out:    &bytes.Buffer{},
		logs:   &bytes.Buffer{},
		dbPath: dbPath,
	}
	env.global = &Global{
		Logger: slog.New(slog.NewJSONHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Out:    env.out,
		Ctx:    context.Background(),
	}
	return env
}

func (e *testEnv) withInput(s string) *testEnv {
	e.global.In = strings.NewReader(s)
	return e
}

func decodeClassifications(t *testing.T, r io.Reader) []Classification {
	t.Helper()
	var out []Classification
	dec := json.NewDecoder(r)
	for dec.More() {
		var c Classification
		require.NoError(t, dec.Decode(&c))
		out = append(out, c)
	}
	return out
}

func TestClassify_JSONLines(t *testing.T) {
	env := newTestEnv(t).withInput(`{"statusCode":503,"message":"tts upstream down"}
{"fields":["email"],"message":"email required"}
`)
	cmd := &ClassifyCmd{}
	require.NoError(t, cmd.Run(env.global, env.root))

	got := decodeClassifications(t, env.out)
	require.Len(t, got, 2)

	require.Equal(t, "503", got[0].Error.Code)
	require.Equal(t, "API", got[0].Error.Category)
	require.Equal(t, "HIGH", got[0].Error.Severity)
	require.Equal(t, 503, got[0].StatusCode)
	require.True(t, got[0].CanRecover)
	require.Equal(t, recovery.ActionRetry, got[0].Action)
	require.Equal(t, int64(5000), got[0].DelayMS, "configured API delay override applies")

	require.Equal(t, "VALIDATION", got[1].Error.Category)
	require.Equal(t, []string{"email"}, got[1].Error.Fields)
	require.False(t, got[1].CanRecover)
	require.Equal(t, recovery.ActionAbort, got[1].Action)
}

func TestClassify_ArrayWithHint(t *testing.T) {
	env := newTestEnv(t).withInput(`["speech engine crashed", {"statusCode": 401}]`)
	cmd := &ClassifyCmd{Hint: "tts"}
	require.NoError(t, cmd.Run(env.global, env.root))

	got := decodeClassifications(t, env.out)
	require.Len(t, got, 2)
	require.Equal(t, "TTS", got[0].Error.Category)
	require.Equal(t, int64(2000), got[0].DelayMS)
	require.Equal(t, "API", got[1].Error.Category, "structural signal beats the hint")
	require.Equal(t, recovery.ActionFallback, got[1].Action)
}

func TestClassify_FromFile(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "errors.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"code":"ECONNREFUSED"}`), 0o600))

	cmd := &ClassifyCmd{File: path}
	require.NoError(t, cmd.Run(env.global, env.root))

	got := decodeClassifications(t, env.out)
	require.Len(t, got, 1)
	require.Equal(t, "NETWORK", got[0].Error.Category)
	require.Equal(t, recovery.ActionRetry, got[0].Action)
}

func TestClassify_EmptyInput(t *testing.T) {
	env := newTestEnv(t).withInput("  \n")
	require.NoError(t, (&ClassifyCmd{}).Run(env.global, env.root))
	require.Empty(t, env.out.String())
}

func TestClassify_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t).withInput(`{"statusCode":`)
	err := (&ClassifyCmd{}).Run(env.global, env.root)
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))

	env = newTestEnv(t).withInput(`{}`)
	err = (&ClassifyCmd{Hint: "git"}).Run(env.global, env.root)
	v, ok := errors.IsValidationError(err)
	require.True(t, ok)
	require.Equal(t, []string{"hint"}, v.Fields)

	env = newTestEnv(t)
	err = (&ClassifyCmd{File: filepath.Join(t.TempDir(), "missing.json")}).Run(env.global, env.root)
	require.True(t, errors.IsCategory(err, errors.CategoryFile))
}

func TestClassify_LogsWithConfiguredContext(t *testing.T) {
	env := newTestEnv(t).withInput(`{"statusCode":500}`)
	require.NoError(t, (&ClassifyCmd{}).Run(env.global, env.root))
	require.Contains(t, env.logs.String(), "sess-42")
}

func TestProbe_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	cmd := &ProbeCmd{URL: srv.URL, Timeout: 5 * time.Second}
	require.NoError(t, cmd.Run(env.global, env.root))
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, "OK 200 "+srv.URL+"\n", env.out.String())
}

func TestProbe_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	env := newTestEnv(t)
	err := (&ProbeCmd{URL: srv.URL, Timeout: 5 * time.Second}).Run(env.global, env.root)
	d, ok := errors.IsAPIError(err)
	require.True(t, ok)
	require.Equal(t, 404, d.StatusCode)
	require.Equal(t, int32(1), calls.Load())
	require.Empty(t, env.out.String())
}

func TestProbe_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	env := newTestEnv(t)
	err := (&ProbeCmd{URL: srv.URL, Timeout: 5 * time.Second, Attempts: 2}).Run(env.global, env.root)
	require.Error(t, err)
	require.Equal(t, "502", errors.ToBaseError(err).Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestProbe_ConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	env := newTestEnv(t)
	err := (&ProbeCmd{URL: url, Timeout: time.Second, Attempts: 1}).Run(env.global, env.root)
	require.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func seedJournal(t *testing.T, path string, now time.Time) {
	t.Helper()
	store, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	records := []journal.Record{
		{ID: "old", OccurredAt: now.Add(-72 * time.Hour), Code: "503", Category: errors.CategoryAPI, Severity: errors.SeverityHigh, Message: "upstream down", Action: "retry"},
		{ID: "tts", OccurredAt: now.Add(-time.Hour), Code: errors.CodeTTS, Category: errors.CategoryTTS, Severity: errors.SeverityMedium, Message: "voice missing", Action: "retry", SessionID: "s1"},
		{ID: "val", OccurredAt: now.Add(-time.Minute), Code: errors.CodeValidation, Category: errors.CategoryValidation, Severity: errors.SeverityLow, Message: "bad level", Action: "abort"},
	}
	for _, r := range records {
		require.NoError(t, store.Append(context.Background(), r))
	}
}

func TestJournalList(t *testing.T) {
	env := newTestEnv(t)
	seedJournal(t, env.dbPath, time.Now())

	cmd := &JournalListCmd{Limit: 50, JSON: true}
	require.NoError(t, cmd.Run(env.global, env.root))

	var ids []string
	dec := json.NewDecoder(env.out)
	for dec.More() {
		var r journal.Record
		require.NoError(t, dec.Decode(&r))
		ids = append(ids, r.ID)
	}
	require.Equal(t, []string{"val", "tts", "old"}, ids)
}

func TestJournalList_FiltersAndTable(t *testing.T) {
	env := newTestEnv(t)
	seedJournal(t, env.dbPath, time.Now())

	cmd := &JournalListCmd{Severity: "medium", Since: 24 * time.Hour, Limit: 10}
	require.NoError(t, cmd.Run(env.global, env.root))

	lines := strings.Split(strings.TrimSpace(env.out.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "TIME"))
	require.Contains(t, lines[1], "voice missing")
	require.Contains(t, lines[1], "TTS")
}

func TestJournalListFilter_RejectsUnknownValues(t *testing.T) {
	_, err := (&JournalListCmd{Category: "git"}).filter(time.Now())
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = (&JournalListCmd{Severity: "fatal"}).filter(time.Now())
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f, err := (&JournalListCmd{Category: "api", Since: time.Hour, Session: "s1"}).filter(now)
	require.NoError(t, err)
	require.Equal(t, errors.CategoryAPI, f.Category)
	require.Equal(t, now.Add(-time.Hour), f.Since)
	require.Equal(t, "s1", f.SessionID)
}

func TestJournalPrune(t *testing.T) {
	env := newTestEnv(t)
	seedJournal(t, env.dbPath, time.Now())

	cmd := &JournalPruneCmd{OlderThan: 24 * time.Hour}
	require.NoError(t, cmd.Run(env.global, env.root))
	require.Equal(t, "Pruned 1 records older than 24h0m0s\n", env.out.String())

	store, err := journal.NewSQLiteStore(env.dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	left, err := store.List(context.Background(), journal.Filter{})
	require.NoError(t, err)
	require.Len(t, left, 2)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutorguard.yaml")
	var out bytes.Buffer

	require.NoError(t, RunInit(&out, path, false))
	require.FileExists(t, path)
	require.Contains(t, out.String(), "initialized successfully")

	err := RunInit(&out, path, false)
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
	require.Contains(t, out.String(), "Initialization failed")

	require.NoError(t, RunInit(&out, path, true))
}

func TestNewHandler_FromConfig(t *testing.T) {
	env := newTestEnv(t)
	cfg, err := env.root.LoadConfig()
	require.NoError(t, err)

	h, err := NewHandler(cfg, env.global.Logger, nil)
	require.NoError(t, err)

	ctx := h.Context()
	require.Equal(t, "sess-42", ctx.SessionID)
	require.Equal(t, map[string]any{"app": "tutor"}, ctx.Metadata)
	require.False(t, ctx.Timestamp.IsZero())

	res := h.RecoveryStrategy(errors.NewAPIError(503, "down"))
	require.Equal(t, 5*time.Second, res.Delay)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	root := &CLI{Config: filepath.Join(t.TempDir(), "absent.yaml")}
	cfg, err := root.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestApplyReload(t *testing.T) {
	env := newTestEnv(t)
	cfg, err := env.root.LoadConfig()
	require.NoError(t, err)
	h, err := NewHandler(cfg, env.global.Logger, nil)
	require.NoError(t, err)

	next, err := env.root.LoadConfig()
	require.NoError(t, err)
	next.Recovery.Delays = map[string]string{"TTS": "250ms"}
	next.Context.UserID = "learner-7"
	require.NoError(t, ApplyReload(h, next))

	require.Equal(t, 3*time.Second, h.RecoveryStrategy(errors.NewAPIError(503, "down")).Delay, "removed override falls back to the built-in delay")
	require.Equal(t, 250*time.Millisecond, h.RecoveryStrategy(errors.NewTTSError("nova", "down")).Delay)
	require.Equal(t, "learner-7", h.Context().UserID)
	require.Equal(t, "sess-42", h.Context().SessionID)

	next.Recovery.Delays = map[string]string{"TTS": "soon"}
	require.True(t, errors.IsCategory(ApplyReload(h, next), errors.CategoryValidation))
}
