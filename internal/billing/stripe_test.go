package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStripeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  StripeConfig
		wantErr bool
	}{
		{
			name:    "valid_config",
			config:  StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_123"},
			wantErr: false,
		},
		{
			name:    "missing_api_key",
			config:  StripeConfig{WebhookSecret: "whsec_123"},
			wantErr: true,
		},
		{
			name:    "missing_webhook_secret",
			config:  StripeConfig{APIKey: "sk_test_123"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStripeConfig_IsTestMode(t *testing.T) {
	live := StripeConfig{APIKey: "sk_live_abc123"}
	if live.IsTestMode() {
		t.Error("sk_live key reported as test mode")
	}

	test := StripeConfig{APIKey: "sk_test_abc123"}
	if !test.IsTestMode() {
		t.Error("sk_test key not reported as test mode")
	}
}

// signPayload builds a Stripe-Signature header value for the given body,
// matching the scheme stripe-go verifies (v1 = HMAC-SHA256 over "t.body").
func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeProvider_VerifyWebhook(t *testing.T) {
	const secret = "whsec_test_secret"

	provider, err := NewStripeProvider(StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: secret,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{"customer":"cus_1","subscription":"sub_1"}}}`)

	t.Run("accepts_valid_signature", func(t *testing.T) {
		event, err := provider.VerifyWebhook(payload, signPayload(secret, payload, time.Now()))
		if err != nil {
			t.Fatalf("expected valid signature to verify, got %v", err)
		}
		if event.Type != "invoice.paid" {
			t.Errorf("expected event type invoice.paid, got %s", event.Type)
		}
		if got := event.ObjectString("customer"); got != "cus_1" {
			t.Errorf("expected customer cus_1, got %q", got)
		}
	})

	t.Run("rejects_wrong_secret", func(t *testing.T) {
		_, err := provider.VerifyWebhook(payload, signPayload("whsec_other", payload, time.Now()))
		if !errors.Is(err, ErrInvalidWebhookSignature) {
			t.Errorf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})

	t.Run("rejects_tampered_body", func(t *testing.T) {
		header := signPayload(secret, payload, time.Now())
		tampered := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{"customer":"cus_evil"}}}`)
		_, err := provider.VerifyWebhook(tampered, header)
		if !errors.Is(err, ErrInvalidWebhookSignature) {
			t.Errorf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})

	t.Run("rejects_stale_timestamp", func(t *testing.T) {
		_, err := provider.VerifyWebhook(payload, signPayload(secret, payload, time.Now().Add(-time.Hour)))
		if !errors.Is(err, ErrInvalidWebhookSignature) {
			t.Errorf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})

	t.Run("rejects_garbage_header", func(t *testing.T) {
		_, err := provider.VerifyWebhook(payload, "not-a-signature")
		if !errors.Is(err, ErrInvalidWebhookSignature) {
			t.Errorf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})
}

func TestWebhookEvent_ObjectString(t *testing.T) {
	event := &WebhookEvent{
		Type: "checkout.session.completed",
		Object: map[string]interface{}{
			"customer":     "cus_1",
			"subscription": map[string]interface{}{"id": "sub_1"},
			"nullfield":    nil,
			"number":       float64(42),
		},
	}

	tests := []struct {
		key  string
		want string
	}{
		{"customer", "cus_1"},
		{"subscription", "sub_1"},
		{"nullfield", ""},
		{"number", ""},
		{"missing", ""},
	}

	for _, tt := range tests {
		if got := event.ObjectString(tt.key); got != tt.want {
			t.Errorf("ObjectString(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
