// Package authsvc contains the auth service's reactions to subscription
// events: keeping the local users table's role and subscription columns in
// sync with what billing announces.
package authsvc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/event"
)

// SubscribedHandler promotes a user to subscriber when billing announces a
// new subscription.
type SubscribedHandler struct {
	users  domain.UserStore
	logger *slog.Logger
}

var _ event.Handler = (*SubscribedHandler)(nil)

func NewSubscribedHandler(users domain.UserStore, logger *slog.Logger) *SubscribedHandler {
	return &SubscribedHandler{users: users, logger: logger}
}

func (h *SubscribedHandler) Topic() string { return domain.TopicUserSubscribed }

func (h *SubscribedHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	userID, err := parseUserID(payload.UserID)
	if err != nil {
		return err
	}

	params := domain.SetUserSubscriptionParams{
		UserID: userID,
		Role:   domain.RoleSubscriber,
		Status: domain.SubscriptionStatusActive,
		Active: true,
		Name:   payload.Subscription,
	}
	if expires := payload.ExpireDate(); !expires.IsZero() {
		params.ExpiresAt = &expires
	}

	return applyUpdate(ctx, h.users, h.logger, "user subscribed", params)
}

// UnsubscribedHandler demotes a user back to member when the subscription
// is cancelled.
type UnsubscribedHandler struct {
	users  domain.UserStore
	logger *slog.Logger
}

var _ event.Handler = (*UnsubscribedHandler)(nil)

func NewUnsubscribedHandler(users domain.UserStore, logger *slog.Logger) *UnsubscribedHandler {
	return &UnsubscribedHandler{users: users, logger: logger}
}

func (h *UnsubscribedHandler) Topic() string { return domain.TopicUserUnsubscribed }

func (h *UnsubscribedHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	userID, err := parseUserID(payload.UserID)
	if err != nil {
		return err
	}

	params := domain.SetUserSubscriptionParams{
		UserID: userID,
		Role:   domain.RoleMember,
		Status: domain.SubscriptionStatusCancelled,
		Active: false,
		Name:   payload.Subscription,
	}
	if expires := payload.ExpireDate(); !expires.IsZero() {
		// Access runs until the paid period ends.
		params.ExpiresAt = &expires
	}

	return applyUpdate(ctx, h.users, h.logger, "user unsubscribed", params)
}

// RenewalHandler reactivates a user whose cancelled subscription was
// renewed by a successful payment.
type RenewalHandler struct {
	users  domain.UserStore
	logger *slog.Logger
}

var _ event.Handler = (*RenewalHandler)(nil)

func NewRenewalHandler(users domain.UserStore, logger *slog.Logger) *RenewalHandler {
	return &RenewalHandler{users: users, logger: logger}
}

func (h *RenewalHandler) Topic() string { return domain.TopicSubscriptionRenewal }

func (h *RenewalHandler) Handle(ctx context.Context, data []byte) error {
	payload, err := event.DecodePayload(data)
	if err != nil {
		return err
	}

	userID, err := parseUserID(payload.UserID)
	if err != nil {
		return err
	}

	params := domain.SetUserSubscriptionParams{
		UserID: userID,
		Role:   domain.RoleSubscriber,
		Status: domain.SubscriptionStatusActive,
		Active: true,
		Name:   payload.Subscription,
	}
	if expires := payload.ExpireDate(); !expires.IsZero() {
		params.ExpiresAt = &expires
	}

	return applyUpdate(ctx, h.users, h.logger, "subscription renewed", params)
}

// applyUpdate writes the absolute subscription state. A user id billing
// knows but this service doesn't is logged and dropped rather than
// redelivered: redelivery cannot create the missing account.
func applyUpdate(ctx context.Context, users domain.UserStore, logger *slog.Logger, action string, params domain.SetUserSubscriptionParams) error {
	if err := users.SetSubscription(ctx, params); err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			logger.Warn("skipping event for unknown user",
				"action", action,
				"user_id", params.UserID,
			)
			return nil
		}
		return err
	}

	logger.Info(action,
		"user_id", params.UserID,
		"role", params.Role,
		"status", params.Status,
	)
	return nil
}

// parseUserID converts the payload user id. The payload already passed
// uuid validation, but the parse keeps the type boundary honest.
func parseUserID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, event.ErrBadPayload
	}
	return id, nil
}
