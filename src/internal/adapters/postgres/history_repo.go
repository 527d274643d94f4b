package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

type PostgresHistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *PostgresHistoryRepo {
	return &PostgresHistoryRepo{db: db}
}

func (r *PostgresHistoryRepo) InitSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS watch_history (
			user_id TEXT NOT NULL,
			movie_id TEXT NOT NULL,
			position DOUBLE PRECISION DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (user_id, movie_id)
		);
	`)
	return err
}

func (r *PostgresHistoryRepo) GetProgress(ctx context.Context, userID, movieID string) (*domain.WatchProgress, error) {
	query := `
		SELECT user_id, movie_id, position, updated_at
		FROM watch_history
		WHERE user_id = $1 AND movie_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, userID, movieID)

	var p domain.WatchProgress
	err := row.Scan(&p.UserID, &p.MovieID, &p.Position, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No progress yet is not an error
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresHistoryRepo) SaveProgress(ctx context.Context, p *domain.WatchProgress) error {
	query := `
		INSERT INTO watch_history (user_id, movie_id, position, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, movie_id) DO UPDATE SET
			position = EXCLUDED.position,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := r.db.ExecContext(ctx, query, p.UserID, p.MovieID, p.Position, p.UpdatedAt)
	return err
}
