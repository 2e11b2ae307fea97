// Package postgres implements the domain store interfaces on PostgreSQL
// via pgx. Queries are written inline; every write is an idempotent
// absolute-state statement so replayed events converge instead of drifting.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/skuld/internal/domain"
)

// SubscriptionStore implements domain.SubscriptionStore using PostgreSQL.
type SubscriptionStore struct {
	db *pgxpool.Pool
}

// Compile-time check to ensure SubscriptionStore implements domain.SubscriptionStore.
var _ domain.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a new SubscriptionStore instance.
func NewSubscriptionStore(db *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Upsert inserts or fully overwrites the record keyed by subscription id.
// All fields come from the provider snapshot, so applying the same
// snapshot twice leaves the row unchanged.
func (s *SubscriptionStore) Upsert(ctx context.Context, record domain.SubscriptionRecord) (*domain.SubscriptionRecord, error) {
	const query = `
		INSERT INTO subscriptions (
			id, customer_id, status, name,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			status = EXCLUDED.status,
			name = EXCLUDED.name,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = now()
		RETURNING id, customer_id, status, name,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at`

	row := s.db.QueryRow(ctx, query,
		record.ID,
		record.CustomerID,
		record.Status,
		record.Name,
		record.CurrentPeriodStart,
		record.CurrentPeriodEnd,
		record.CancelAtPeriodEnd,
	)

	var out domain.SubscriptionRecord
	if err := row.Scan(
		&out.ID,
		&out.CustomerID,
		&out.Status,
		&out.Name,
		&out.CurrentPeriodStart,
		&out.CurrentPeriodEnd,
		&out.CancelAtPeriodEnd,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, domain.Internal(err, "subscription.upsert", "failed to upsert subscription")
	}

	return &out, nil
}

// Get returns the stored record for a provider subscription id.
func (s *SubscriptionStore) Get(ctx context.Context, id string) (*domain.SubscriptionRecord, error) {
	const query = `
		SELECT id, customer_id, status, name,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at
		FROM subscriptions
		WHERE id = $1`

	var out domain.SubscriptionRecord
	if err := s.db.QueryRow(ctx, query, id).Scan(
		&out.ID,
		&out.CustomerID,
		&out.Status,
		&out.Name,
		&out.CurrentPeriodStart,
		&out.CurrentPeriodEnd,
		&out.CancelAtPeriodEnd,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("subscription.get", "subscription", id)
		}
		return nil, domain.Internal(err, "subscription.get", "failed to get subscription")
	}

	return &out, nil
}
