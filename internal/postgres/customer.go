package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/skuld/internal/domain"
)

// CustomerStore implements domain.CustomerStore using PostgreSQL.
type CustomerStore struct {
	db *pgxpool.Pool
}

// Compile-time check to ensure CustomerStore implements domain.CustomerStore.
var _ domain.CustomerStore = (*CustomerStore)(nil)

// NewCustomerStore creates a new CustomerStore instance.
func NewCustomerStore(db *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{db: db}
}

// GetByCustomerID resolves a provider customer id to the local user mapping.
func (s *CustomerStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.Customer, error) {
	const query = `
		SELECT user_id, email, customer_id, subscription_id
		FROM billing_customers
		WHERE customer_id = $1`

	var out domain.Customer
	if err := s.db.QueryRow(ctx, query, customerID).Scan(
		&out.UserID,
		&out.Email,
		&out.CustomerID,
		&out.SubscriptionID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("customer.get_by_customer_id", "customer", customerID)
		}
		return nil, domain.Internal(err, "customer.get_by_customer_id", "failed to get customer")
	}

	return &out, nil
}

// GetByUserID returns the customer mapping for a local user.
func (s *CustomerStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Customer, error) {
	const query = `
		SELECT user_id, email, customer_id, subscription_id
		FROM billing_customers
		WHERE user_id = $1`

	var out domain.Customer
	if err := s.db.QueryRow(ctx, query, userID).Scan(
		&out.UserID,
		&out.Email,
		&out.CustomerID,
		&out.SubscriptionID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("customer.get_by_user_id", "customer", userID.String())
		}
		return nil, domain.Internal(err, "customer.get_by_user_id", "failed to get customer")
	}

	return &out, nil
}

// LinkSubscription records the user's current provider subscription id.
func (s *CustomerStore) LinkSubscription(ctx context.Context, userID uuid.UUID, subscriptionID string) error {
	const query = `
		UPDATE billing_customers
		SET subscription_id = $2
		WHERE user_id = $1`

	tag, err := s.db.Exec(ctx, query, userID, subscriptionID)
	if err != nil {
		return domain.Internal(err, "customer.link_subscription", "failed to link subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("customer.link_subscription", "customer", userID.String())
	}

	return nil
}
