package domain

import (
	"fmt"
	"time"
)

// Broker topics, one per domain event. Naming convention: "{source}_{event}".
// Every consuming service registers handlers against this shared set; the
// set itself is convention, not shared state.
const (
	TopicUserSubscribed       = "billing_user_subscribed"
	TopicUserUnsubscribed     = "billing_user_unsubscribed"
	TopicSubscriptionRenewal  = "billing_subscription_renewal"
	TopicInvoicePaid          = "billing_invoice_paid"
	TopicInvoicePaymentFailed = "billing_invoice_payment_failed"
)

// Topics lists every topic of the convention, in the order above.
// Used to configure the broker stream.
func Topics() []string {
	return []string{
		TopicUserSubscribed,
		TopicUserUnsubscribed,
		TopicSubscriptionRenewal,
		TopicInvoicePaid,
		TopicInvoicePaymentFailed,
	}
}

// EventPayload is the versionless JSON body of every domain event.
// Evolution is additive-only; consumers default missing optional fields
// to empty.
type EventPayload struct {
	UserID                 string `json:"user_id" validate:"required,uuid"`
	Email                  string `json:"email" validate:"omitempty,email"`
	Subscription           string `json:"subscription,omitempty"`
	SubscriptionExpireDate string `json:"subscription_expire_date,omitempty"`
}

// ExpireDate parses the optional ISO-8601 expiry. Returns the zero time
// when the field is absent or unparseable.
func (p EventPayload) ExpireDate() time.Time {
	if p.SubscriptionExpireDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, p.SubscriptionExpireDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Event is the wire-level unit published to the broker.
type Event struct {
	// Topic is the logical event name (one of the Topic constants).
	Topic string

	// Key is the partition/ordering key. All events for one subscription
	// carry the same key and therefore land in the same partition.
	Key string

	Payload EventPayload
}

// EventKey builds the partition key convention "{topic}_{subscription_id}_{user_id}".
func EventKey(topic, subscriptionID, userID string) string {
	return fmt.Sprintf("%s_%s_%s", topic, subscriptionID, userID)
}

// NewEvent assembles a domain event for a subscription change.
// expireDate may be zero when the event carries no expiry.
func NewEvent(topic string, subscriptionID string, customer Customer, subscriptionName string, expireDate time.Time) Event {
	payload := EventPayload{
		UserID:       customer.UserID.String(),
		Email:        customer.Email,
		Subscription: subscriptionName,
	}
	if !expireDate.IsZero() {
		payload.SubscriptionExpireDate = expireDate.UTC().Format(time.RFC3339)
	}
	return Event{
		Topic:   topic,
		Key:     EventKey(topic, subscriptionID, payload.UserID),
		Payload: payload,
	}
}
