package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/billing"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/event"
	"github.com/dukerupert/skuld/internal/service"
)

var testUserID = uuid.MustParse("2f3e4d5c-6b7a-4890-9a1b-2c3d4e5f6a7b")

type fixture struct {
	handler   *StripeHandler
	provider  *billing.MockProvider
	store     *domain.MockSubscriptionStore
	customers *domain.MockCustomerStore
	publisher *event.MockPublisher
}

func newFixture() *fixture {
	provider := billing.NewMockProvider()
	provider.Subscriptions["sub_1"] = &billing.Subscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             "active",
		Name:               "Pro Plan",
		CurrentPeriodStart: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}

	store := domain.NewMockSubscriptionStore()
	customers := domain.NewMockCustomerStore()
	customers.Customers["cus_1"] = &domain.Customer{
		UserID:     testUserID,
		Email:      "user@example.com",
		CustomerID: "cus_1",
	}

	publisher := &event.MockPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewSubscriptionService(provider, store, customers, logger)

	return &fixture{
		handler:   NewStripeHandler(provider, svc, publisher, logger),
		provider:  provider,
		store:     store,
		customers: customers,
		publisher: publisher,
	}
}

// verifyAs makes the mock provider accept any signature and return the
// given event envelope, so tests drive the handler past verification.
func (f *fixture) verifyAs(evt *billing.WebhookEvent) {
	f.provider.VerifyWebhookFunc = func(payload []byte, signature string) (*billing.WebhookEvent, error) {
		return evt, nil
	}
}

func (f *fixture) post(t *testing.T, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	f.handler.HandleWebhook(rec, req)
	return rec
}

func checkoutEvent() *billing.WebhookEvent {
	return &billing.WebhookEvent{
		ID:   "evt_1",
		Type: "checkout.session.completed",
		Object: map[string]interface{}{
			"customer":     "cus_1",
			"subscription": "sub_1",
		},
	}
}

func TestHandleWebhook_RejectsNonPost(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	f.handler.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	f := newFixture()

	rec := f.post(t, "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(f.provider.CallLog) != 0 {
		t.Error("verification must not run without a signature header")
	}
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := newFixture()
	f.provider.VerifyWebhookFunc = func(payload []byte, signature string) (*billing.WebhookEvent, error) {
		return nil, billing.ErrInvalidWebhookSignature
	}

	rec := f.post(t, "t=1,v1=bad")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(f.publisher.Events) != 0 || f.publisher.FlushCalls != 0 {
		t.Error("nothing may be published for an unverified webhook")
	}
	if len(f.store.Records) != 0 {
		t.Error("nothing may be stored for an unverified webhook")
	}
}

func TestHandleWebhook_UnknownEventType(t *testing.T) {
	f := newFixture()
	f.verifyAs(&billing.WebhookEvent{ID: "evt_9", Type: "customer.updated", Object: map[string]interface{}{}})

	rec := f.post(t, "t=1,v1=ok")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(f.publisher.Events) != 0 {
		t.Error("ignored event types must not publish")
	}
}

func TestHandleWebhook_MissingReferences(t *testing.T) {
	f := newFixture()
	f.verifyAs(&billing.WebhookEvent{
		ID:     "evt_2",
		Type:   "checkout.session.completed",
		Object: map[string]interface{}{"customer": "cus_1"},
	})

	rec := f.post(t, "t=1,v1=ok")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleWebhook_UnmappedCustomer(t *testing.T) {
	f := newFixture()
	evt := checkoutEvent()
	evt.Object["customer"] = "cus_unknown"
	f.verifyAs(evt)

	rec := f.post(t, "t=1,v1=ok")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleWebhook_ProviderMissingSubscription(t *testing.T) {
	f := newFixture()
	delete(f.provider.Subscriptions, "sub_1")
	f.verifyAs(checkoutEvent())

	rec := f.post(t, "t=1,v1=ok")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleWebhook_CheckoutCompleted(t *testing.T) {
	f := newFixture()
	f.verifyAs(checkoutEvent())

	rec := f.post(t, "t=1,v1=ok")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"received":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	if len(f.publisher.Events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(f.publisher.Events))
	}
	published := f.publisher.Events[0]
	if published.Topic != domain.TopicUserSubscribed {
		t.Errorf("topic = %q, want %q", published.Topic, domain.TopicUserSubscribed)
	}
	if want := domain.EventKey(domain.TopicUserSubscribed, "sub_1", testUserID.String()); published.Key != want {
		t.Errorf("key = %q, want %q", published.Key, want)
	}
	if f.publisher.FlushCalls != 1 {
		t.Errorf("expected 1 flush, got %d", f.publisher.FlushCalls)
	}
	if f.store.Records["sub_1"] == nil {
		t.Error("expected reconciled record in storage")
	}
}

func TestHandleWebhook_PublishFailureReturnsBadGateway(t *testing.T) {
	f := newFixture()
	f.verifyAs(checkoutEvent())
	f.publisher.PublishFunc = func(ctx context.Context, evt domain.Event) error {
		return errors.New("broker unreachable")
	}

	rec := f.post(t, "t=1,v1=ok")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestHandleWebhook_FlushFailureReturnsBadGateway(t *testing.T) {
	f := newFixture()
	f.verifyAs(checkoutEvent())
	f.publisher.FlushFunc = func(ctx context.Context) error {
		return errors.New("publish ack timeout")
	}

	rec := f.post(t, "t=1,v1=ok")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestHandleWebhook_ReplayedDeliveryConverges(t *testing.T) {
	f := newFixture()
	f.verifyAs(checkoutEvent())

	first := f.post(t, "t=1,v1=ok")
	second := f.post(t, "t=1,v1=ok")

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}

	// The duplicate publish is the accepted cost of at-least-once
	// delivery; state must not diverge.
	if len(f.publisher.Events) != 2 {
		t.Errorf("expected 2 published events, got %d", len(f.publisher.Events))
	}
	if f.publisher.Events[0].Key != f.publisher.Events[1].Key {
		t.Error("replayed deliveries must publish the same event key")
	}
	if len(f.store.Records) != 1 {
		t.Errorf("expected exactly one stored record, got %d", len(f.store.Records))
	}
}
