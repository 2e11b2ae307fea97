package billing

import (
	"context"
	"time"
)

// Provider defines the payment-provider operations the pipeline needs.
// Implementations can use Stripe, Paddle, etc.
type Provider interface {
	// VerifyWebhook verifies an inbound callback's authenticity against the
	// raw, unparsed body and returns the decoded event envelope.
	// Verification always happens before any parsing of the body by
	// business logic. Returns an error wrapping ErrInvalidWebhookSignature
	// on failure.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)

	// GetSubscription fetches the authoritative current subscription
	// snapshot from the provider API. Reconciliation always works from
	// this snapshot, never from possibly-stale webhook payload fields.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// CancelAtPeriodEnd flags the subscription for cancellation at the end
	// of the current billing period and returns the updated snapshot.
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error)
}

// WebhookEvent is a verified provider callback, carried exactly as provided
// by the payment provider.
type WebhookEvent struct {
	ID     string
	Type   string
	Object map[string]interface{} // the event's data.object
}

// ObjectString extracts a string field from the event object. Provider
// payloads carry references either as plain id strings or as embedded
// objects with an "id" field; both forms resolve to the id. Returns ""
// for missing or null fields.
func (e *WebhookEvent) ObjectString(key string) string {
	v, ok := e.Object[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case map[string]interface{}:
		if id, ok := val["id"].(string); ok {
			return id
		}
	}
	return ""
}

// Subscription is the provider-agnostic subscription snapshot.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string // provider status string (active, past_due, canceled, ...)
	Name               string // plan/price name
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}
