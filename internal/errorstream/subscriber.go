package errorstream

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/tutorguard/internal/logfields"
)

// EnvelopeFunc processes one received envelope. Returning an error asks for redelivery.
type EnvelopeFunc func(ctx context.Context, env Envelope) error

// Subscriber decodes stream messages and acknowledges them according to the
// outcome of fn.
type Subscriber struct {
	fn     EnvelopeFunc
	logger *slog.Logger
}

// handle acks processed messages, naks ones fn failed on and terminates
// messages that cannot be decoded, since redelivering them cannot help.
func (s *Subscriber) handle(ctx context.Context, msg jetstream.Msg) {
	env, err := Decode(msg.Data())
	if err != nil {
		s.logger.Warn("Dropping malformed error envelope",
			logfields.Subject(msg.Subject()),
			logfields.Error(err))
		_ = msg.Term()
		return
	}

	if err := s.fn(ctx, env); err != nil {
		s.logger.Warn("Error envelope processing failed, requesting redelivery",
			logfields.EventID(env.ID),
			logfields.Error(err))
		_ = msg.Nak()
		return
	}
	if err := msg.Ack(); err != nil {
		s.logger.Warn("Failed to ack error envelope", logfields.EventID(env.ID), logfields.Error(err))
	}
}
