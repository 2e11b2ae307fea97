package billing

import "errors"

var (
	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrSubscriptionNotFound is returned when the provider has no subscription with the given id.
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")

	// ErrInvalidAPIKey is returned when the provider API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")
)
