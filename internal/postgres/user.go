package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/skuld/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
// It touches only the subscription columns of the users table; account
// creation and authentication live elsewhere.
type UserStore struct {
	db *pgxpool.Pool
}

// Compile-time check to ensure UserStore implements domain.UserStore.
var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a new UserStore instance.
func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

// SetSubscription overwrites the user's subscription state and role.
// All values are absolute, so replaying the same event converges on the
// same row.
func (s *UserStore) SetSubscription(ctx context.Context, params domain.SetUserSubscriptionParams) error {
	const query = `
		UPDATE users
		SET role = $2,
			subscription_status = $3,
			is_subscription_active = $4,
			subscription_name = $5,
			subscription_expires_at = $6,
			updated_at = now()
		WHERE id = $1`

	var expiresAt pgtype.Timestamptz
	if params.ExpiresAt != nil {
		expiresAt = pgtype.Timestamptz{Time: *params.ExpiresAt, Valid: true}
	}

	tag, err := s.db.Exec(ctx, query,
		params.UserID,
		params.Role,
		params.Status,
		params.Active,
		params.Name,
		expiresAt,
	)
	if err != nil {
		return domain.Internal(err, "user.set_subscription", "failed to update subscription state")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("user.set_subscription", "user", params.UserID.String())
	}

	return nil
}
