package event

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/skuld/internal/telemetry"
)

// Message is one broker message held by the consumer loop.
// Ack commits the message (it will not be redelivered); Nak requests
// redelivery to this or another consumer in the group.
type Message interface {
	Topic() string
	Data() []byte
	Ack() error
	Nak() error
}

// Fetcher polls the broker for one message at a time.
// Returns ErrNoMessages when the poll window elapses empty.
type Fetcher interface {
	Fetch(ctx context.Context) (Message, error)
}

// Consumer is a single logical worker over one partition assignment:
// poll, decode, dispatch, acknowledge in strict sequence, with no
// overlapping in-flight messages. Parallelism comes from running more
// consumer instances, never from concurrent processing inside one loop.
type Consumer struct {
	service  string // consumer group / service name, for logs and metrics
	fetcher  Fetcher
	registry *Registry
	logger   *slog.Logger
}

// NewConsumer creates a consumer loop for a service's handler registry.
func NewConsumer(service string, fetcher Fetcher, registry *Registry, logger *slog.Logger) *Consumer {
	return &Consumer{
		service:  service,
		fetcher:  fetcher,
		registry: registry,
		logger:   logger,
	}
}

// Run polls until the context is cancelled. Shutdown happens between
// messages only: an in-flight handler always completes before exit, so a
// message is never left half-processed with its acknowledgement unsettled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer starting",
		"service", c.service,
		"topics", c.registry.Topics(),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer shutting down", "service", c.service)
			return nil
		default:
		}

		msg, err := c.fetcher.Fetch(ctx)
		if err != nil {
			if errors.Is(err, ErrNoMessages) {
				continue
			}
			if ctx.Err() != nil {
				c.logger.Info("consumer shutting down", "service", c.service)
				return nil
			}
			c.logger.Error("fetch failed",
				"service", c.service,
				"error", err,
			)
			time.Sleep(time.Second)
			continue
		}

		c.process(ctx, msg)
	}
}

// process dispatches one message and settles its acknowledgement.
// The offset is only committed (Ack) after the handler returns without
// error; a handler error leaves the message for redelivery (Nak).
func (c *Consumer) process(ctx context.Context, msg Message) {
	topic := msg.Topic()

	handler, ok := c.registry.Dispatch(topic)
	if !ok {
		// Unknown topics are committed, not redelivered forever.
		c.logger.Warn("no handler registered for topic, acknowledging",
			"service", c.service,
			"topic", topic,
		)
		c.ack(msg)
		if telemetry.Pipeline != nil {
			telemetry.Pipeline.UnknownTopics.WithLabelValues(c.service, topic).Inc()
		}
		return
	}

	if err := handler.Handle(ctx, msg.Data()); err != nil {
		if errors.Is(err, ErrBadPayload) {
			// Poison message: committing is the only way to unblock the
			// partition; the body will never decode on any retry.
			c.logger.Error("undecodable message, acknowledging",
				"service", c.service,
				"topic", topic,
				"error", err,
			)
			c.ack(msg)
			if telemetry.Pipeline != nil {
				telemetry.Pipeline.PoisonMessages.WithLabelValues(c.service, topic).Inc()
			}
			return
		}

		c.logger.Error("handler failed, message will be redelivered",
			"service", c.service,
			"topic", topic,
			"error", err,
		)
		if err := msg.Nak(); err != nil {
			c.logger.Error("failed to nak message",
				"service", c.service,
				"topic", topic,
				"error", err,
			)
		}
		if telemetry.Pipeline != nil {
			telemetry.Pipeline.MessagesFailed.WithLabelValues(c.service, topic).Inc()
		}
		return
	}

	c.ack(msg)
	c.logger.Debug("message processed",
		"service", c.service,
		"topic", topic,
	)
	if telemetry.Pipeline != nil {
		telemetry.Pipeline.MessagesProcessed.WithLabelValues(c.service, topic).Inc()
	}
}

func (c *Consumer) ack(msg Message) {
	if err := msg.Ack(); err != nil {
		c.logger.Error("failed to ack message",
			"service", c.service,
			"topic", msg.Topic(),
			"error", err,
		)
	}
}
