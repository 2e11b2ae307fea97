package event

import (
	"context"

	"github.com/dukerupert/skuld/internal/domain"
)

// MockPublisher records published events for tests. Override PublishFunc
// or FlushFunc to inject failures. It serves as both Publisher and
// Session so tests observe every publish regardless of session.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, event domain.Event) error
	FlushFunc   func(ctx context.Context) error

	Events     []domain.Event
	FlushCalls int
}

var (
	_ Publisher = (*MockPublisher)(nil)
	_ Session   = (*MockPublisher)(nil)
)

func (m *MockPublisher) Session() Session { return m }

func (m *MockPublisher) Publish(ctx context.Context, event domain.Event) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Flush(ctx context.Context) error {
	m.FlushCalls++
	if m.FlushFunc != nil {
		return m.FlushFunc(ctx)
	}
	return nil
}

// MockMessage is an in-memory Message tracking acknowledgement state.
type MockMessage struct {
	Subject string
	Body    []byte

	Acked bool
	Naked bool
}

var _ Message = (*MockMessage)(nil)

func (m *MockMessage) Topic() string { return m.Subject }
func (m *MockMessage) Data() []byte  { return m.Body }

func (m *MockMessage) Ack() error {
	m.Acked = true
	return nil
}

func (m *MockMessage) Nak() error {
	m.Naked = true
	return nil
}

// MockFetcher serves a fixed queue of messages, then reports empty polls.
type MockFetcher struct {
	Queue []Message
}

var _ Fetcher = (*MockFetcher)(nil)

func (m *MockFetcher) Fetch(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.Queue) == 0 {
		return nil, ErrNoMessages
	}
	msg := m.Queue[0]
	m.Queue = m.Queue[1:]
	return msg, nil
}
