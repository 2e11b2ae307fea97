// Package billingsvc contains the billing service's own consumer-side
// handlers. Billing both produces subscription events and consumes the
// invoice-paid feedback to extend the stored billing period.
package billingsvc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/event"
)

// InvoicePaidHandler extends the stored subscription period when an
// invoice payment lands.
type InvoicePaidHandler struct {
	store     domain.SubscriptionStore
	customers domain.CustomerStore
	logger    *slog.Logger
}

var _ event.Handler = (*InvoicePaidHandler)(nil)

func NewInvoicePaidHandler(store domain.SubscriptionStore, customers domain.CustomerStore, logger *slog.Logger) *InvoicePaidHandler {
	return &InvoicePaidHandler{store: store, customers: customers, logger: logger}
}

func (h *InvoicePaidHandler) Topic() string { return domain.TopicInvoicePaid }

func (h *InvoicePaidHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return event.ErrBadPayload
	}

	customer, err := h.customers.GetByUserID(ctx, userID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			h.logger.Warn("invoice paid for unknown user, skipping", "user_id", userID)
			return nil
		}
		return err
	}
	if !customer.HasActiveSubscription() {
		h.logger.Warn("invoice paid for user without linked subscription, skipping", "user_id", userID)
		return nil
	}

	record, err := h.store.Get(ctx, customer.SubscriptionID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			h.logger.Warn("invoice paid for unknown subscription, skipping",
				"user_id", userID,
				"subscription_id", customer.SubscriptionID,
			)
			return nil
		}
		return err
	}

	record.Status = domain.SubscriptionStatusActive
	if expires := payload.ExpireDate(); !expires.IsZero() {
		record.CurrentPeriodEnd = expires
	}

	if _, err := h.store.Upsert(ctx, *record); err != nil {
		return err
	}

	h.logger.Info("billing period extended",
		"user_id", userID,
		"subscription_id", record.ID,
		"period_end", record.CurrentPeriodEnd,
	)
	return nil
}
