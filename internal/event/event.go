// Package event implements the durable domain-event pipeline: a JetStream
// publisher with at-least-once delivery, a per-service topic registry, and
// a single-worker consumer loop with explicit acknowledgement.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/skuld/internal/domain"
)

// KeyHeader is the message header carrying the partition/ordering key.
const KeyHeader = "Event-Key"

var (
	// ErrBadPayload marks a message body that can never be decoded. The
	// consumer loop acknowledges such messages instead of redelivering
	// them forever (poison-message policy).
	ErrBadPayload = errors.New("event: payload cannot be decoded")

	// ErrNoMessages is returned by a Fetcher when the poll window elapses
	// without a message. Not an error condition; the loop polls again.
	ErrNoMessages = errors.New("event: no messages available")
)

// Handler processes one decoded message for a single topic.
// Handle must be idempotent: the broker delivers at least once, and a
// returned error causes redelivery of the same message.
type Handler interface {
	// Topic returns the topic this handler subscribes to.
	Topic() string

	// Handle processes a raw message body. Return an error wrapping
	// ErrBadPayload for permanently undecodable bodies; any other error
	// requests redelivery.
	Handle(ctx context.Context, data []byte) error
}

var validate = validator.New()

// DecodePayload unmarshals and validates a domain event payload.
// Failures are permanent and wrapped in ErrBadPayload.
func DecodePayload(data []byte) (*domain.EventPayload, error) {
	var payload domain.EventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &payload, nil
}
