package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"
	stripesubscription "github.com/stripe/stripe-go/v83/subscription"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeConfig contains configuration for the Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	// Used to verify webhook signatures from Stripe
	WebhookSecret string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return len(c.APIKey) > 7 && c.APIKey[:8] == "sk_test_"
}

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	config StripeConfig
}

// Compile-time check to ensure StripeProvider implements Provider.
var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = config.APIKey
	return &StripeProvider{config: config}, nil
}

// VerifyWebhook verifies a Stripe webhook signature against the raw body.
// Uses stripe-go's constant-time signature check; the body is only parsed
// after verification succeeds.
func (s *StripeProvider) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	return &WebhookEvent{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: event.Data.Object,
	}, nil
}

// GetSubscription retrieves the current subscription snapshot from Stripe.
func (s *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	sub, err := stripesubscription.Get(subscriptionID, params)
	if err != nil {
		if isStripeNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
		}
		return nil, fmt.Errorf("stripe: failed to get subscription %s: %w", subscriptionID, err)
	}
	return mapStripeSubscription(sub), nil
}

// CancelAtPeriodEnd flags a Stripe subscription for end-of-period cancellation.
func (s *StripeProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	sub, err := stripesubscription.Update(subscriptionID, params)
	if err != nil {
		if isStripeNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
		}
		return nil, fmt.Errorf("stripe: failed to cancel subscription %s: %w", subscriptionID, err)
	}
	return mapStripeSubscription(sub), nil
}

// mapStripeSubscription converts a Stripe subscription to the
// provider-agnostic snapshot. Billing period bounds live on the
// subscription item in the current Stripe API.
func mapStripeSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		out.Name = priceName(item.Price)
	}
	return out
}

// priceName picks a human-readable plan name from a Stripe price.
func priceName(price *stripe.Price) string {
	if price == nil {
		return ""
	}
	if price.Nickname != "" {
		return price.Nickname
	}
	if price.LookupKey != "" {
		return price.LookupKey
	}
	if price.Product != nil && price.Product.Name != "" {
		return price.Product.Name
	}
	return price.ID
}

// isStripeNotFound reports whether err is a Stripe resource_missing error.
func isStripeNotFound(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == 404
	}
	return false
}
