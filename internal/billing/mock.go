package billing

import (
	"context"
	"fmt"
)

// MockProvider is a mock billing provider for testing.
// Simulates webhook verification and subscription lookups without calling
// the Stripe API.
type MockProvider struct {
	// VerifyWebhookFunc allows customizing webhook verification behavior
	VerifyWebhookFunc func(payload []byte, signature string) (*WebhookEvent, error)

	// GetSubscriptionFunc allows customizing subscription retrieval behavior
	GetSubscriptionFunc func(ctx context.Context, subscriptionID string) (*Subscription, error)

	// CancelAtPeriodEndFunc allows customizing cancellation behavior
	CancelAtPeriodEndFunc func(ctx context.Context, subscriptionID string) (*Subscription, error)

	// Subscriptions stores snapshots returned by default lookups
	Subscriptions map[string]*Subscription

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// Compile-time check to ensure MockProvider implements Provider.
var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Subscriptions: make(map[string]*Subscription),
		CallLog:       []string{},
	}
}

// VerifyWebhook verifies a webhook using the configured func, defaulting to success
// with an empty event envelope.
func (m *MockProvider) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	m.CallLog = append(m.CallLog, "VerifyWebhook")

	if m.VerifyWebhookFunc != nil {
		return m.VerifyWebhookFunc(payload, signature)
	}
	return &WebhookEvent{Object: map[string]interface{}{}}, nil
}

// GetSubscription returns a stored snapshot or ErrSubscriptionNotFound.
func (m *MockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetSubscription(%s)", subscriptionID))

	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, subscriptionID)
	}
	if sub, ok := m.Subscriptions[subscriptionID]; ok {
		return sub, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
}

// CancelAtPeriodEnd marks a stored snapshot for end-of-period cancellation.
func (m *MockProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CancelAtPeriodEnd(%s)", subscriptionID))

	if m.CancelAtPeriodEndFunc != nil {
		return m.CancelAtPeriodEndFunc(ctx, subscriptionID)
	}
	sub, ok := m.Subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
	}
	out := *sub
	out.CancelAtPeriodEnd = true
	m.Subscriptions[subscriptionID] = &out
	return &out, nil
}
