package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEventKey(t *testing.T) {
	got := EventKey(TopicUserSubscribed, "sub_1", "f6a7c2e4-1111-4222-8333-444455556666")
	want := "billing_user_subscribed_sub_1_f6a7c2e4-1111-4222-8333-444455556666"
	if got != want {
		t.Errorf("EventKey() = %q, want %q", got, want)
	}
}

func TestNewEvent(t *testing.T) {
	userID := uuid.MustParse("f6a7c2e4-1111-4222-8333-444455556666")
	customer := Customer{
		UserID:     userID,
		Email:      "user@example.com",
		CustomerID: "cus_1",
	}
	expires := time.Date(2026, 9, 28, 12, 0, 0, 0, time.UTC)

	event := NewEvent(TopicUserSubscribed, "sub_1", customer, "Pro Plan", expires)

	if event.Topic != TopicUserSubscribed {
		t.Errorf("Topic = %q, want %q", event.Topic, TopicUserSubscribed)
	}
	if want := EventKey(TopicUserSubscribed, "sub_1", userID.String()); event.Key != want {
		t.Errorf("Key = %q, want %q", event.Key, want)
	}
	if event.Payload.UserID != userID.String() {
		t.Errorf("Payload.UserID = %q, want %q", event.Payload.UserID, userID.String())
	}
	if event.Payload.Email != "user@example.com" {
		t.Errorf("Payload.Email = %q", event.Payload.Email)
	}
	if event.Payload.Subscription != "Pro Plan" {
		t.Errorf("Payload.Subscription = %q", event.Payload.Subscription)
	}
	if event.Payload.SubscriptionExpireDate != "2026-09-28T12:00:00Z" {
		t.Errorf("Payload.SubscriptionExpireDate = %q", event.Payload.SubscriptionExpireDate)
	}
}

func TestNewEvent_NoExpiry(t *testing.T) {
	customer := Customer{UserID: uuid.New(), Email: "user@example.com"}

	event := NewEvent(TopicUserUnsubscribed, "sub_1", customer, "Pro Plan", time.Time{})

	if event.Payload.SubscriptionExpireDate != "" {
		t.Errorf("expected empty expire date, got %q", event.Payload.SubscriptionExpireDate)
	}
}

func TestEventPayload_ExpireDate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{
			name:  "valid_rfc3339",
			value: "2026-09-28T12:00:00Z",
			want:  time.Date(2026, 9, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "empty",
			value: "",
			want:  time.Time{},
		},
		{
			name:  "unparseable",
			value: "next tuesday",
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := EventPayload{SubscriptionExpireDate: tt.value}
			if got := p.ExpireDate(); !got.Equal(tt.want) {
				t.Errorf("ExpireDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	topics := Topics()
	if len(topics) != 5 {
		t.Fatalf("expected 5 topics, got %d", len(topics))
	}
	seen := make(map[string]bool, len(topics))
	for _, topic := range topics {
		if seen[topic] {
			t.Errorf("duplicate topic %q", topic)
		}
		seen[topic] = true
	}
}
