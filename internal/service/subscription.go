// Package service contains the reconciliation logic between payment
// provider callbacks and locally stored subscription state.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/skuld/internal/billing"
	"github.com/dukerupert/skuld/internal/domain"
)

// SubscriptionService reconciles verified webhook events against the
// provider API and local storage, and decides which domain events the
// change fans out as.
type SubscriptionService struct {
	provider  billing.Provider
	store     domain.SubscriptionStore
	customers domain.CustomerStore
	logger    *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService instance.
func NewSubscriptionService(provider billing.Provider, store domain.SubscriptionStore, customers domain.CustomerStore, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		provider:  provider,
		store:     store,
		customers: customers,
		logger:    logger,
	}
}

// Outcome is the result of reconciling one webhook event: the stored
// record after the upsert and the domain events to publish. Ignored is
// set for event types outside the subscription lifecycle.
type Outcome struct {
	Record  *domain.SubscriptionRecord
	Events  []domain.Event
	Ignored bool
}

// Reconcile applies one verified provider event. The webhook payload is
// treated as a hint only: the authoritative subscription state is always
// re-fetched from the provider API before storage, so out-of-order and
// replayed deliveries converge on the current provider state.
func (s *SubscriptionService) Reconcile(ctx context.Context, event *billing.WebhookEvent) (*Outcome, error) {
	switch event.Type {
	case "checkout.session.completed":
		return s.reconcileCheckoutCompleted(ctx, event)
	case "invoice.paid", "invoice.payment_succeeded":
		return s.reconcileInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		return s.reconcilePaymentFailed(ctx, event)
	default:
		s.logger.Debug("ignoring webhook event type", "type", event.Type)
		return &Outcome{Ignored: true}, nil
	}
}

func (s *SubscriptionService) reconcileCheckoutCompleted(ctx context.Context, event *billing.WebhookEvent) (*Outcome, error) {
	customerID := event.ObjectString("customer")
	subscriptionID := event.ObjectString("subscription")
	if customerID == "" || subscriptionID == "" {
		return nil, domain.NotFound("subscription.reconcile", "checkout session reference", event.ID)
	}

	customer, err := s.customers.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	record, err := s.syncFromProvider(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if err := s.customers.LinkSubscription(ctx, customer.UserID, record.ID); err != nil {
		return nil, err
	}

	s.logger.Info("subscription activated",
		"subscription_id", record.ID,
		"user_id", customer.UserID,
		"status", record.Status,
	)

	return &Outcome{
		Record: record,
		Events: []domain.Event{
			domain.NewEvent(domain.TopicUserSubscribed, record.ID, *customer, record.Name, record.CurrentPeriodEnd),
		},
	}, nil
}

func (s *SubscriptionService) reconcileInvoicePaid(ctx context.Context, event *billing.WebhookEvent) (*Outcome, error) {
	customerID := event.ObjectString("customer")
	subscriptionID := event.ObjectString("subscription")
	if customerID == "" || subscriptionID == "" {
		return nil, domain.NotFound("subscription.reconcile", "invoice reference", event.ID)
	}

	// Remember the pre-upsert status: an invoice paid against a
	// subscription we last saw cancelled is a reactivation.
	var previousStatus string
	previous, err := s.store.Get(ctx, subscriptionID)
	if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, err
	}
	if previous != nil {
		previousStatus = previous.Status
	}

	record, err := s.syncFromProvider(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.GetByCustomerID(ctx, record.CustomerID)
	if err != nil {
		return nil, err
	}

	events := []domain.Event{
		domain.NewEvent(domain.TopicInvoicePaid, record.ID, *customer, record.Name, record.CurrentPeriodEnd),
	}
	if previousStatus == domain.SubscriptionStatusCancelled {
		events = append(events,
			domain.NewEvent(domain.TopicSubscriptionRenewal, record.ID, *customer, record.Name, record.CurrentPeriodEnd),
		)
	}

	s.logger.Info("invoice payment reconciled",
		"subscription_id", record.ID,
		"user_id", customer.UserID,
		"status", record.Status,
		"renewal", previousStatus == domain.SubscriptionStatusCancelled,
	)

	return &Outcome{Record: record, Events: events}, nil
}

func (s *SubscriptionService) reconcilePaymentFailed(ctx context.Context, event *billing.WebhookEvent) (*Outcome, error) {
	customerID := event.ObjectString("customer")
	subscriptionID := event.ObjectString("subscription")
	if customerID == "" || subscriptionID == "" {
		return nil, domain.NotFound("subscription.reconcile", "invoice reference", event.ID)
	}

	record, err := s.syncFromProvider(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("invoice payment failed",
		"subscription_id", record.ID,
		"status", record.Status,
	)

	// State is recorded; dunning notifications are driven by the provider's
	// own retry emails, so no domain event fans out here.
	return &Outcome{Record: record}, nil
}

// syncFromProvider fetches the authoritative snapshot and overwrites the
// stored record with it.
func (s *SubscriptionService) syncFromProvider(ctx context.Context, subscriptionID string) (*domain.SubscriptionRecord, error) {
	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return nil, domain.NotFound("subscription.sync", "subscription", subscriptionID)
		}
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, "subscription.sync", "provider lookup failed")
	}

	record := domain.SubscriptionRecord{
		ID:                 sub.ID,
		CustomerID:         sub.CustomerID,
		Status:             statusFromProvider(sub.Status),
		Name:               sub.Name,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}

	return s.store.Upsert(ctx, record)
}

// statusFromProvider normalizes provider status strings to the stored set.
func statusFromProvider(status string) string {
	switch status {
	case "active", "trialing":
		return domain.SubscriptionStatusActive
	case "past_due", "unpaid":
		return domain.SubscriptionStatusPastDue
	case "canceled", "cancelled":
		return domain.SubscriptionStatusCancelled
	default:
		return domain.SubscriptionStatusIncomplete
	}
}
