// Package webhook is the pipeline's single ingress: verified payment
// provider callbacks come in, reconciled state and published domain events
// go out. A non-2xx response makes the provider redeliver, so every
// failure after signature verification maps to a retryable status.
package webhook

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/skuld/internal/billing"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/event"
	"github.com/dukerupert/skuld/internal/handler"
	"github.com/dukerupert/skuld/internal/service"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// StripeHandler handles Stripe webhook events.
type StripeHandler struct {
	provider  billing.Provider
	service   *service.SubscriptionService
	publisher event.Publisher
	logger    *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, svc *service.SubscriptionService, publisher event.Publisher, logger *slog.Logger) *StripeHandler {
	return &StripeHandler{
		provider:  provider,
		service:   svc,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:8000/webhook
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.handle", "method not allowed"))
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.handle", "error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("webhook rejected: missing signature header")
		handler.ErrorResponse(w, r, domain.Invalid("webhook.verify", "missing signature"))
		return
	}

	// Verification runs on the raw body, before anything parses it.
	webhookEvent, err := h.provider.VerifyWebhook(payload, signature)
	if err != nil {
		h.logger.Warn("webhook rejected: signature verification failed", "error", err)
		if telemetry.Pipeline != nil {
			telemetry.Pipeline.WebhookFailed.WithLabelValues("unknown", "signature").Inc()
		}
		handler.ErrorResponse(w, r, domain.Invalid("webhook.verify", "invalid signature"))
		return
	}

	h.logger.Info("webhook received", "type", webhookEvent.Type, "id", webhookEvent.ID)
	if telemetry.Pipeline != nil {
		telemetry.Pipeline.WebhookReceived.WithLabelValues(webhookEvent.Type).Inc()
	}
	defer func() {
		if telemetry.Pipeline != nil {
			telemetry.Pipeline.WebhookLatency.WithLabelValues(webhookEvent.Type).Observe(time.Since(startTime).Seconds())
		}
	}()

	outcome, err := h.service.Reconcile(r.Context(), webhookEvent)
	if err != nil {
		h.logger.Error("webhook reconciliation failed",
			"type", webhookEvent.Type,
			"id", webhookEvent.ID,
			"error", err,
		)
		if telemetry.Pipeline != nil {
			telemetry.Pipeline.WebhookFailed.WithLabelValues(webhookEvent.Type, failureLabel(err)).Inc()
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	if !outcome.Ignored {
		// State is committed; if the broker rejects the fan-out we answer
		// non-2xx so the provider redelivers and reconciliation re-runs
		// idempotently.
		if err := h.publishEvents(r, outcome); err != nil {
			if telemetry.Pipeline != nil {
				telemetry.Pipeline.WebhookFailed.WithLabelValues(webhookEvent.Type, "publish").Inc()
			}
			handler.ErrorResponse(w, r, err)
			return
		}
	}

	if telemetry.Pipeline != nil {
		telemetry.Pipeline.WebhookProcessed.WithLabelValues(webhookEvent.Type).Inc()
	}
	handler.JSONResponse(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeHandler) publishEvents(r *http.Request, outcome *service.Outcome) error {
	session := h.publisher.Session()
	for _, evt := range outcome.Events {
		if err := session.Publish(r.Context(), evt); err != nil {
			h.logger.Error("event publish failed", "topic", evt.Topic, "key", evt.Key, "error", err)
			return domain.WrapError(err, domain.EUNAVAILABLE, "webhook.publish", "failed to publish event")
		}
	}
	if err := session.Flush(r.Context()); err != nil {
		h.logger.Error("event flush failed", "error", err)
		return domain.WrapError(err, domain.EUNAVAILABLE, "webhook.publish", "failed to flush events")
	}
	return nil
}

func failureLabel(err error) string {
	switch domain.ErrorCode(err) {
	case domain.ENOTFOUND:
		return "not_found"
	case domain.EUNAVAILABLE:
		return "unavailable"
	default:
		return "internal"
	}
}
