package errorstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/tutorguard/internal/config"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/logfields"
)

// Client manages the NATS connection and the error stream.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	cfg    config.StreamConfig
	logger *slog.Logger
}

// Connect dials NATS and makes sure the error stream exists.
func Connect(ctx context.Context, cfg config.StreamConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, errors.NewValidationError("error stream is disabled", "stream.enabled")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("tutorguard"))
	if err != nil {
		return nil, errors.NewNetworkError("connect", fmt.Sprintf("failed to connect to NATS: %v", err), false).WithCause(err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.NewNetworkError("jetstream", fmt.Sprintf("failed to create JetStream context: %v", err), false).WithCause(err)
	}

	c := &Client{conn: conn, js: js, cfg: cfg, logger: logger}
	if err := c.ensureStream(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("NATS client initialized for error stream",
		logfields.URL(cfg.NATSURL),
		logfields.Subject(cfg.Subject),
		slog.String("stream", cfg.Stream))
	return c, nil
}

func (c *Client) ensureStream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        c.cfg.Stream,
		Description: "Handled errors reported by the tutoring services",
		Subjects:    []string{c.cfg.Subject},
		Storage:     jetstream.FileStorage,
		Duplicates:  2 * time.Minute,
	})
	if err != nil {
		return errors.NewNetworkError("stream", fmt.Sprintf("failed to create stream %s: %v", c.cfg.Stream, err), false).WithCause(err)
	}
	return nil
}

// Publisher returns a publisher stamping envelopes with source.
func (c *Client) Publisher(source string) *Publisher {
	return NewPublisher(c.js, c.cfg.Subject, source, c.logger)
}

// Subscribe starts a durable consumer on the error stream. fn is called once
// per envelope; the returned function stops consumption.
func (c *Client) Subscribe(ctx context.Context, fn EnvelopeFunc) (func(), error) {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       c.cfg.Durable,
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return nil, errors.NewNetworkError("consumer", fmt.Sprintf("failed to create consumer %s: %v", c.cfg.Durable, err), false).WithCause(err)
	}

	sub := &Subscriber{fn: fn, logger: c.logger}
	cc, err := cons.Consume(func(msg jetstream.Msg) { sub.handle(ctx, msg) })
	if err != nil {
		return nil, errors.NewNetworkError("consume", fmt.Sprintf("failed to start consuming: %v", err), false).WithCause(err)
	}

	c.logger.Info("Consuming error stream",
		logfields.Subject(c.cfg.Subject),
		slog.String("durable", c.cfg.Durable))
	return cc.Stop, nil
}

// Close closes the NATS connection.
func (c *Client) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
