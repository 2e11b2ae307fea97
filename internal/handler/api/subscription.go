// Package api exposes the authenticated subscriber-facing endpoints.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/billing"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/event"
	"github.com/dukerupert/skuld/internal/handler"
)

// SubscriptionHandler serves self-service subscription management for
// logged-in users.
type SubscriptionHandler struct {
	provider  billing.Provider
	customers domain.CustomerStore
	publisher event.Publisher
	jwtSecret []byte
	logger    *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler instance.
func NewSubscriptionHandler(provider billing.Provider, customers domain.CustomerStore, publisher event.Publisher, jwtSecret string, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		provider:  provider,
		customers: customers,
		publisher: publisher,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// HandleCancel flags the caller's subscription for cancellation at the end
// of the paid period and announces the change on the event pipeline.
//
//	DELETE /api/v1/subscription
func (h *SubscriptionHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		handler.ErrorResponse(w, r, domain.Invalid("subscription.cancel", "method not allowed"))
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	customer, err := h.customers.GetByUserID(r.Context(), userID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			handler.ErrorResponse(w, r, domain.Forbidden("subscription.cancel", "customer does not exist"))
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	if !customer.HasActiveSubscription() {
		handler.ErrorResponse(w, r, domain.Forbidden("subscription.cancel", "user has no active subscription"))
		return
	}

	sub, err := h.provider.CancelAtPeriodEnd(r.Context(), customer.SubscriptionID)
	if err != nil {
		h.logger.Error("provider cancellation failed",
			"user_id", userID,
			"subscription_id", customer.SubscriptionID,
			"error", err,
		)
		handler.ErrorResponse(w, r, domain.Forbidden("subscription.cancel", "unable to cancel subscription"))
		return
	}

	// Access runs until the end of the paid period.
	evt := domain.NewEvent(domain.TopicUserUnsubscribed, sub.ID, *customer, sub.Name, sub.CurrentPeriodEnd)
	session := h.publisher.Session()
	if err := session.Publish(r.Context(), evt); err != nil {
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EUNAVAILABLE, "subscription.cancel", "failed to publish event"))
		return
	}
	if err := session.Flush(r.Context()); err != nil {
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EUNAVAILABLE, "subscription.cancel", "failed to flush events"))
		return
	}

	h.logger.Info("subscription cancellation scheduled",
		"user_id", userID,
		"subscription_id", sub.ID,
		"period_end", sub.CurrentPeriodEnd,
	)

	handler.JSONResponse(w, http.StatusOK, map[string]string{"subscription_id": sub.ID})
}

// authenticate validates the bearer token and extracts the caller's user id.
func (h *SubscriptionHandler) authenticate(r *http.Request) (uuid.UUID, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return uuid.Nil, domain.Unauthorized("subscription.auth", "missing authorization header")
	}

	tokenString, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return uuid.Nil, domain.Unauthorized("subscription.auth", "malformed authorization header")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, domain.Invalid("subscription.auth", "invalid or expired token")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return uuid.Nil, domain.Invalid("subscription.auth", "token has no subject")
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, domain.Invalid("subscription.auth", "token subject is not a user id")
	}

	return userID, nil
}
