package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

type PostgresSubscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

func (r *PostgresSubscriptionRepo) InitSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			paid BOOLEAN NOT NULL DEFAULT FALSE,
			reference TEXT DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`CREATE INDEX IF NOT EXISTS subscriptions_user_created_idx ON subscriptions (user_id, created_at DESC);`)
	return err
}

// Latest picks the most recently created record for the user.
func (r *PostgresSubscriptionRepo) Latest(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT id, user_id, paid, reference, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var sub domain.Subscription
	var reference sql.NullString
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Paid, &reference, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.Reference = reference.String
	return &sub, nil
}

func (r *PostgresSubscriptionRepo) Save(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, paid, reference, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			paid = EXCLUDED.paid,
			reference = EXCLUDED.reference;
	`
	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.Paid, sub.Reference, sub.CreatedAt)
	return err
}
