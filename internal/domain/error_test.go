package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message_only",
			err:  &Error{Code: EINVALID, Message: "missing signature header"},
			want: "missing signature header",
		},
		{
			name: "with_op",
			err:  &Error{Code: ENOTFOUND, Op: "subscription.get", Message: "subscription not found: sub_1"},
			want: "subscription.get: subscription not found: sub_1",
		},
		{
			name: "with_wrapped_error",
			err:  &Error{Code: EINTERNAL, Op: "customer.lookup", Message: "query failed", Err: errors.New("connection refused")},
			want: "customer.lookup: query failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"domain_error", Invalid("webhook.verify", "bad signature"), EINVALID},
		{"wrapped_domain_error", fmt.Errorf("handling: %w", NotFound("subscription.get", "subscription", "sub_1")), ENOTFOUND},
		{"plain_error", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	if got := ErrorMessage(Forbidden("subscription.cancel", "customer does not exist")); got != "customer does not exist" {
		t.Errorf("ErrorMessage() = %q", got)
	}

	generic := "An internal error occurred. Please try again later."
	if got := ErrorMessage(Internal(errors.New("pq: deadlock"), "store.upsert", "upsert failed")); got != generic {
		t.Errorf("expected generic message for internal error, got %q", got)
	}
	if got := ErrorMessage(errors.New("boom")); got != generic {
		t.Errorf("expected generic message for plain error, got %q", got)
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, EINTERNAL, "op", "msg") != nil {
		t.Error("wrapping nil must return nil")
	}

	underlying := errors.New("connection refused")
	err := WrapError(underlying, EUNAVAILABLE, "publisher.flush", "broker unreachable")

	if !IsCode(err, EUNAVAILABLE) {
		t.Errorf("expected code %s, got %s", EUNAVAILABLE, ErrorCode(err))
	}
	if !errors.Is(err, underlying) {
		t.Error("expected wrapped error to be reachable via errors.Is")
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("customer.get", "customer", "cus_1")
	if !IsCode(err, ENOTFOUND) {
		t.Errorf("expected ENOTFOUND, got %s", ErrorCode(err))
	}
	if got := ErrorMessage(err); got != "customer not found: cus_1" {
		t.Errorf("ErrorMessage() = %q", got)
	}
}
