// Package notifysvc turns subscription events into customer emails. Every
// handler is a thin decode-compose-send wrapper; delivery failures are
// returned so the broker redelivers, and the occasional duplicate email
// from a redelivery is accepted.
package notifysvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/email"
	"github.com/dukerupert/skuld/internal/event"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// notifier is the shared send path for all notification handlers.
type notifier struct {
	sender email.Sender
	logger *slog.Logger
}

// send composes and delivers one plain-text email. Events without an email
// address are logged and dropped; there is nobody to notify and redelivery
// will not change that.
func (n *notifier) send(ctx context.Context, emailType, to, subject, text string) error {
	if to == "" {
		n.logger.Warn("event carries no email address, skipping notification",
			"email_type", emailType,
		)
		return nil
	}

	if _, err := n.sender.Send(ctx, &email.Email{
		To:       []string{to},
		Subject:  subject,
		TextBody: text,
	}); err != nil {
		if telemetry.Pipeline != nil {
			telemetry.Pipeline.EmailsFailed.WithLabelValues(emailType).Inc()
		}
		return fmt.Errorf("notifysvc: failed to send %s email: %w", emailType, err)
	}

	n.logger.Info("notification sent", "email_type", emailType, "to", to)
	if telemetry.Pipeline != nil {
		telemetry.Pipeline.EmailsSent.WithLabelValues(emailType).Inc()
	}
	return nil
}

// SubscribedHandler welcomes a newly subscribed user.
type SubscribedHandler struct {
	notifier
}

var _ event.Handler = (*SubscribedHandler)(nil)

func NewSubscribedHandler(sender email.Sender, logger *slog.Logger) *SubscribedHandler {
	return &SubscribedHandler{notifier{sender: sender, logger: logger}}
}

func (h *SubscribedHandler) Topic() string { return domain.TopicUserSubscribed }

func (h *SubscribedHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"Thanks for subscribing to %s!\n\nYour subscription is now active.",
		planName(payload),
	)
	if payload.SubscriptionExpireDate != "" {
		text += fmt.Sprintf(" Your current billing period runs until %s.", payload.SubscriptionExpireDate)
	}

	return h.send(ctx, "subscribed", payload.Email, "Welcome to your new subscription", text)
}

// UnsubscribedHandler confirms a cancellation.
type UnsubscribedHandler struct {
	notifier
}

var _ event.Handler = (*UnsubscribedHandler)(nil)

func NewUnsubscribedHandler(sender email.Sender, logger *slog.Logger) *UnsubscribedHandler {
	return &UnsubscribedHandler{notifier{sender: sender, logger: logger}}
}

func (h *UnsubscribedHandler) Topic() string { return domain.TopicUserUnsubscribed }

func (h *UnsubscribedHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"Your %s subscription has been cancelled.",
		planName(payload),
	)
	if payload.SubscriptionExpireDate != "" {
		text += fmt.Sprintf("\n\nYou keep access until %s.", payload.SubscriptionExpireDate)
	}

	return h.send(ctx, "unsubscribed", payload.Email, "Your subscription has been cancelled", text)
}

// RenewalHandler confirms that a cancelled subscription was renewed.
type RenewalHandler struct {
	notifier
}

var _ event.Handler = (*RenewalHandler)(nil)

func NewRenewalHandler(sender email.Sender, logger *slog.Logger) *RenewalHandler {
	return &RenewalHandler{notifier{sender: sender, logger: logger}}
}

func (h *RenewalHandler) Topic() string { return domain.TopicSubscriptionRenewal }

func (h *RenewalHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"Welcome back! Your %s subscription has been renewed and is active again.",
		planName(payload),
	)

	return h.send(ctx, "renewal", payload.Email, "Your subscription has been renewed", text)
}

// PaymentFailedHandler warns the user that a renewal charge failed.
type PaymentFailedHandler struct {
	notifier
}

var _ event.Handler = (*PaymentFailedHandler)(nil)

func NewPaymentFailedHandler(sender email.Sender, logger *slog.Logger) *PaymentFailedHandler {
	return &PaymentFailedHandler{notifier{sender: sender, logger: logger}}
}

func (h *PaymentFailedHandler) Topic() string { return domain.TopicInvoicePaymentFailed }

func (h *PaymentFailedHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"We could not collect payment for your %s subscription.\n\n"+
			"Please update your payment method to keep your subscription active.",
		planName(payload),
	)

	return h.send(ctx, "payment_failed", payload.Email, "Action needed: payment failed", text)
}

func planName(payload *domain.EventPayload) string {
	if payload.Subscription != "" {
		return payload.Subscription
	}
	return "your plan"
}
