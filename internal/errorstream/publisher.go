package errorstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/logfields"
)

// streamPublisher is the part of jetstream.JetStream a Publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher writes envelopes to the error stream.
type Publisher struct {
	js      streamPublisher
	subject string
	source  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a publisher on subject.
func NewPublisher(js streamPublisher, subject, source string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{js: js, subject: subject, source: source, timeout: 5 * time.Second, logger: logger}
}

// Publish sends env. The envelope ID is used as the JetStream message ID so
// a republished envelope is deduplicated by the server.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.js.Publish(ctx, p.subject, data, jetstream.WithMsgID(env.ID)); err != nil {
		return errors.NewNetworkError("publish", fmt.Sprintf("failed to publish error event: %v", err), false).WithCause(err)
	}

	p.logger.Debug("Published error event",
		logfields.EventID(env.ID),
		logfields.Subject(p.subject),
		logfields.ErrorCode(env.Code))
	return nil
}

// Listener forwards every handled error to the stream. Publish failures are
// logged and dropped.
func (p *Publisher) Listener() errorhandler.Listener {
	return func(e errorhandler.Event) {
		if err := p.Publish(context.Background(), FromEvent(p.source, e)); err != nil {
			p.logger.Warn("Failed to publish handled error",
				logfields.EventID(e.ID.String()),
				logfields.Error(err))
		}
	}
}
