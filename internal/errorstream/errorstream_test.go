package errorstream

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutorguard/internal/config"
	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/recovery"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func sampleEvent() errorhandler.Event {
	return errorhandler.Event{
		ID:    uuid.MustParse("6f1c1a9e-3b1f-4d3a-9a4e-0d2a1c9b7e10"),
		Time:  time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC),
		Error: errors.NewAPIError(503, "tts upstream unavailable"),
		Context: errorhandler.Context{
			Endpoint:  "/api/tts",
			Method:    "POST",
			SessionID: "s-1",
			Metadata:  map[string]any{"voice": "nova"},
		},
		Strategy: recovery.Result{CanRecover: true, Action: recovery.ActionRetry, Delay: 3 * time.Second},
	}
}

func TestFromEventAndRestore(t *testing.T) {
	env := FromEvent("chat-proxy", sampleEvent())
	require.Equal(t, "chat-proxy", env.Source)
	require.Equal(t, "503", env.Code)
	require.Equal(t, 503, env.StatusCode)
	require.Equal(t, "retry", env.Action)

	data, err := Encode(env)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "API", raw["category"])
	require.Equal(t, "HIGH", raw["severity"])

	decoded, err := Decode(data)
	require.NoError(t, err)
	be := decoded.BaseError()
	require.Equal(t, errors.CategoryAPI, be.Category)
	require.Equal(t, errors.SeverityHigh, be.Severity)
	require.Equal(t, 503, be.StatusCode())
	require.Equal(t, "tts upstream unavailable", be.Message)

	hc := decoded.HandlerContext()
	require.Equal(t, "s-1", hc.SessionID)
	require.Equal(t, "nova", hc.Metadata["voice"])
}

func TestFromEvent_ValidationFields(t *testing.T) {
	e := sampleEvent()
	e.Error = errors.NewValidationError("bad form", "email")
	env := FromEvent("web", e)
	require.Equal(t, []string{"email"}, env.Fields)

	d, ok := errors.IsValidationError(env.BaseError())
	require.True(t, ok)
	require.Equal(t, []string{"email"}, d.Fields)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"not json", `{`, ""},
		{"missing id", `{"code":"x","category":"API","severity":"LOW"}`, "id"},
		{"bad category", `{"id":"1","code":"x","category":"GIT","severity":"LOW"}`, "category"},
		{"missing severity", `{"id":"1","code":"x","category":"API"}`, "severity"},
		{"missing code", `{"id":"1","category":"API","severity":"LOW"}`, "code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			d, ok := errors.IsValidationError(err)
			require.True(t, ok)
			if tt.field != "" {
				require.Equal(t, []string{tt.field}, d.Fields)
			}
		})
	}
}

func TestDecode_NormalizesCategoryCase(t *testing.T) {
	env, err := Decode([]byte(`{"id":"1","code":"TTS_ERROR","category":"tts","severity":"medium","message":"m"}`))
	require.NoError(t, err)
	require.Equal(t, errors.CategoryTTS, env.Category)
	require.Equal(t, errors.SeverityMedium, env.Severity)
}

type fakeJetStream struct {
	subject string
	payload []byte
	err     error
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject = subject
	f.payload = payload
	return &jetstream.PubAck{Stream: "TUTOR_ERRORS", Sequence: 1}, nil
}

func TestPublisher_Listener(t *testing.T) {
	js := &fakeJetStream{}
	p := NewPublisher(js, "tutor.errors", "chat-proxy", quietLogger())

	h := errorhandler.New(errorhandler.WithLogger(quietLogger()))
	h.OnError(p.Listener())
	h.Handle(errors.NewNetworkError("dial", "connection refused", false))

	require.Equal(t, "tutor.errors", js.subject)
	env, err := Decode(js.payload)
	require.NoError(t, err)
	require.Equal(t, errors.CategoryNetwork, env.Category)
	require.Equal(t, "chat-proxy", env.Source)
}

func TestPublisher_FailureIsNetworkError(t *testing.T) {
	js := &fakeJetStream{err: stdErrors.New("no responders")}
	p := NewPublisher(js, "tutor.errors", "web", quietLogger())

	err := p.Publish(context.Background(), FromEvent("web", sampleEvent()))
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	var logs bytes.Buffer
	p.logger = slog.New(slog.NewTextHandler(&logs, nil))
	require.NotPanics(t, func() { p.Listener()(sampleEvent()) })
	require.Contains(t, logs.String(), "Failed to publish handled error")
}

type fakeMsg struct {
	jetstream.Msg
	data                 []byte
	acked, naked, termed bool
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return "tutor.errors" }

func (m *fakeMsg) Ack() error {
	m.acked = true
	return nil
}

func (m *fakeMsg) Nak() error {
	m.naked = true
	return nil
}

func (m *fakeMsg) Term() error {
	m.termed = true
	return nil
}

func TestSubscriber_AckNakTerm(t *testing.T) {
	good, err := Encode(FromEvent("web", sampleEvent()))
	require.NoError(t, err)

	var received []Envelope
	ok := &Subscriber{logger: quietLogger(), fn: func(_ context.Context, env Envelope) error {
		received = append(received, env)
		return nil
	}}
	failing := &Subscriber{logger: quietLogger(), fn: func(context.Context, Envelope) error {
		return stdErrors.New("journal locked")
	}}

	msg := &fakeMsg{data: good}
	ok.handle(context.Background(), msg)
	require.True(t, msg.acked)
	require.Len(t, received, 1)

	msg = &fakeMsg{data: good}
	failing.handle(context.Background(), msg)
	require.True(t, msg.naked)
	require.False(t, msg.acked)

	msg = &fakeMsg{data: []byte("garbage")}
	ok.handle(context.Background(), msg)
	require.True(t, msg.termed)
	require.Len(t, received, 1)
}

func TestConnect_DisabledStream(t *testing.T) {
	_, err := Connect(context.Background(), errorsDisabledConfig(), quietLogger())
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func errorsDisabledConfig() config.StreamConfig {
	cfg := config.Default().Stream
	cfg.Enabled = false
	return cfg
}
