package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// Publisher opens publish sessions against the broker. The publisher is
// shared across requests; each request opens its own Session so a flush
// settles only that request's publishes.
type Publisher interface {
	Session() Session
}

// Session hands domain events to the broker with an at-least-once
// contract. Publish is fire-and-forget; Flush blocks until every publish
// made through this session is acknowledged (or fails), making publish
// failures visible to the caller before it responds to the payment
// provider. A Session belongs to one request and is not safe for
// concurrent use.
type Session interface {
	Publish(ctx context.Context, event domain.Event) error
	Flush(ctx context.Context) error
}

// JetStreamPublisher opens sessions that publish to a JetStream stream.
// The NATS connection is owned by the caller: constructed at service start,
// drained at service stop.
type JetStreamPublisher struct {
	js           nats.JetStreamContext
	logger       *slog.Logger
	flushTimeout time.Duration
}

// Compile-time check to ensure JetStreamPublisher implements Publisher.
var _ Publisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher creates a publisher on an existing NATS connection.
func NewJetStreamPublisher(nc *nats.Conn, flushTimeout time.Duration, logger *slog.Logger) (*JetStreamPublisher, error) {
	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		return nil, fmt.Errorf("event: failed to create JetStream context: %w", err)
	}
	if flushTimeout <= 0 {
		flushTimeout = 5 * time.Second
	}
	return &JetStreamPublisher{
		js:           js,
		logger:       logger,
		flushTimeout: flushTimeout,
	}, nil
}

// Session opens a publish session scoped to one unit of work.
func (p *JetStreamPublisher) Session() Session {
	return &jetStreamSession{
		js:           p.js,
		logger:       p.logger,
		flushTimeout: p.flushTimeout,
	}
}

// jetStreamSession accumulates the ack futures of its own publishes.
// Futures belonging to other sessions are never inspected here, so a
// concurrent request's failure is neither mis-attributed to this one nor
// lost when this one flushes first.
type jetStreamSession struct {
	js           nats.JetStreamContext
	logger       *slog.Logger
	flushTimeout time.Duration
	pending      []nats.PubAckFuture
}

var _ Session = (*jetStreamSession)(nil)

// Publish serializes the event and hands it to the broker asynchronously.
// The broker ack is collected by Flush.
func (s *jetStreamSession) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("event: failed to marshal payload for %s: %w", event.Topic, err)
	}

	msg := &nats.Msg{
		Subject: event.Topic,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(KeyHeader, event.Key)

	future, err := s.js.PublishMsgAsync(msg)
	if err != nil {
		if telemetry.Pipeline != nil {
			telemetry.Pipeline.PublishFailed.WithLabelValues(event.Topic).Inc()
		}
		return fmt.Errorf("event: failed to publish to %s: %w", event.Topic, err)
	}

	s.pending = append(s.pending, future)

	s.logger.Debug("event published",
		"topic", event.Topic,
		"key", event.Key,
	)
	if telemetry.Pipeline != nil {
		telemetry.Pipeline.EventsPublished.WithLabelValues(event.Topic).Inc()
	}
	return nil
}

// Flush waits for broker acknowledgement of every publish made through
// this session. Returns the first failure so the HTTP caller can surface
// it and let the provider's retry mechanism re-drive reconciliation.
func (s *jetStreamSession) Flush(ctx context.Context) error {
	pending := s.pending
	s.pending = nil

	deadline := time.After(s.flushTimeout)
	for _, future := range pending {
		select {
		case <-future.Ok():
		case err := <-future.Err():
			s.logger.Error("event publish failed",
				"subject", future.Msg().Subject,
				"error", err,
			)
			if telemetry.Pipeline != nil {
				telemetry.Pipeline.PublishFailed.WithLabelValues(future.Msg().Subject).Inc()
			}
			return fmt.Errorf("event: publish to %s failed: %w", future.Msg().Subject, err)
		case <-ctx.Done():
			return fmt.Errorf("event: flush interrupted: %w", ctx.Err())
		case <-deadline:
			return fmt.Errorf("event: flush timed out after %s", s.flushTimeout)
		}
	}
	return nil
}
