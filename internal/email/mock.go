package email

import (
	"context"
	"fmt"
)

// MockSender records sent emails for tests. Override SendFunc to inject
// delivery failures.
type MockSender struct {
	SendFunc func(ctx context.Context, email *Email) (string, error)

	Sent []*Email
}

var _ Sender = (*MockSender)(nil)

func (m *MockSender) Send(ctx context.Context, email *Email) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, email)
	}
	m.Sent = append(m.Sent, email)
	return fmt.Sprintf("mock-%d", len(m.Sent)), nil
}
