package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subscription statuses stored on a SubscriptionRecord. The reconciliation
// logic treats the status as an opaque string and overwrites it on every
// upsert; these constants are the values the provider mapping produces.
const (
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCancelled  = "cancelled"
)

// User roles assigned by the auth service in reaction to subscription events.
const (
	RoleMember     = "member"
	RoleSubscriber = "subscriber"
)

// SubscriptionRecord is the reconciled subscription state owned exclusively
// by the billing service. Exactly one record exists per provider subscription
// id; records are never physically deleted (cancellation is a status change).
type SubscriptionRecord struct {
	// ID is the provider-assigned subscription identifier, stable across
	// the subscription's lifetime.
	ID string

	// CustomerID is the provider-assigned customer identifier.
	CustomerID string

	// Status is one of the SubscriptionStatus values above.
	Status string

	// Name is the plan/product name, carried into domain event payloads.
	Name string

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	// CancelAtPeriodEnd signals a pending, not-yet-effective cancellation.
	CancelAtPeriodEnd bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionStore persists reconciled subscription state.
type SubscriptionStore interface {
	// Upsert inserts the record or overwrites all fields of an existing
	// record with the same ID. Re-applying the same provider snapshot is
	// a no-op.
	Upsert(ctx context.Context, record SubscriptionRecord) (*SubscriptionRecord, error)

	// Get returns the record for a provider subscription id, or an
	// ENOTFOUND domain error.
	Get(ctx context.Context, id string) (*SubscriptionRecord, error)
}

// Customer maps a local user to its provider-side customer, and optionally
// to the user's current subscription.
type Customer struct {
	UserID         uuid.UUID
	Email          string
	CustomerID     string
	SubscriptionID string // empty when the user has no active subscription
}

// HasActiveSubscription reports whether a subscription is linked to the customer.
func (c *Customer) HasActiveSubscription() bool {
	return c.SubscriptionID != ""
}

// CustomerStore resolves provider customer ids to local users and back.
// Owned by the billing service.
type CustomerStore interface {
	// GetByCustomerID returns the customer mapped to a provider customer
	// id, or an ENOTFOUND domain error when no local user is mapped.
	GetByCustomerID(ctx context.Context, customerID string) (*Customer, error)

	// GetByUserID returns the customer record for a local user.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Customer, error)

	// LinkSubscription records the user's current provider subscription id.
	// Idempotent: linking the same id twice leaves the same state.
	LinkSubscription(ctx context.Context, userID uuid.UUID, subscriptionID string) error
}

// SetUserSubscriptionParams carries an auth-side subscription state update.
// All fields are absolute values, never deltas, so re-applying the same
// update is idempotent.
type SetUserSubscriptionParams struct {
	UserID    uuid.UUID
	Role      string
	Status    string
	Active    bool
	Name      string
	ExpiresAt *time.Time
}

// UserStore is the auth service's view of its own users table.
type UserStore interface {
	// SetSubscription overwrites the user's subscription state and role.
	// Returns an ENOTFOUND domain error when the user does not exist.
	SetSubscription(ctx context.Context, params SetUserSubscriptionParams) error
}
