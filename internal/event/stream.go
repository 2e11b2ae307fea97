package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/skuld/internal/domain"
)

// EnsureStream creates the durable stream that retains every domain event
// topic. Safe to call from each service at startup; an existing stream with
// the same configuration is left alone.
func EnsureStream(js nats.JetStreamContext, name string) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  domain.Topics(),
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("event: failed to ensure stream %s: %w", name, err)
	}
	return nil
}

// JetStreamFetcher pulls messages for one durable consumer. The durable
// name is the consumer group: every service instance sharing it splits the
// stream's messages, and unacknowledged messages are redelivered.
type JetStreamFetcher struct {
	sub  *nats.Subscription
	wait time.Duration
}

var _ Fetcher = (*JetStreamFetcher)(nil)

// NewJetStreamFetcher binds a durable pull consumer to the stream. The
// empty subject filter subscribes the consumer to every topic in the
// stream; dispatch by topic happens in the consumer loop.
func NewJetStreamFetcher(js nats.JetStreamContext, stream, durable string, wait time.Duration) (*JetStreamFetcher, error) {
	sub, err := js.PullSubscribe("", durable,
		nats.BindStream(stream),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return nil, fmt.Errorf("event: failed to create durable consumer %s on %s: %w", durable, stream, err)
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &JetStreamFetcher{sub: sub, wait: wait}, nil
}

// Fetch pulls a single message, waiting up to the configured poll window.
func (f *JetStreamFetcher) Fetch(ctx context.Context) (Message, error) {
	msgs, err := f.sub.Fetch(1, nats.MaxWait(f.wait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNoMessages
		}
		return nil, fmt.Errorf("event: fetch failed: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}
	return &natsMessage{msg: msgs[0]}, nil
}

// Unsubscribe detaches this instance from the durable consumer. The
// durable itself survives on the server so redeliveries are not lost
// across restarts.
func (f *JetStreamFetcher) Unsubscribe() error {
	return f.sub.Drain()
}

type natsMessage struct {
	msg *nats.Msg
}

var _ Message = (*natsMessage)(nil)

func (m *natsMessage) Topic() string {
	return m.msg.Subject
}

func (m *natsMessage) Data() []byte {
	return m.msg.Data
}

func (m *natsMessage) Ack() error {
	return m.msg.Ack()
}

func (m *natsMessage) Nak() error {
	return m.msg.Nak()
}
