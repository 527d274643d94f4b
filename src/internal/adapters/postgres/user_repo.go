package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

type PostgresUserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (r *PostgresUserRepo) InitSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT,
			name TEXT DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, name, created_at, last_seen
		FROM users
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var user domain.User
	var email, name sql.NullString
	err := row.Scan(&user.ID, &email, &name, &user.CreatedAt, &user.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	user.Name = name.String
	return &user, nil
}

func (r *PostgresUserRepo) Save(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, created_at, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			last_seen = EXCLUDED.last_seen;
	`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Name, user.CreatedAt, user.LastSeen)
	return err
}
