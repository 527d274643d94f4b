package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func NewConnection(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// schemaIniter is implemented by every repo in this package.
type schemaIniter interface {
	InitSchema() error
}

// InitSchemas creates the tables of the given repos in order.
func InitSchemas(repos ...schemaIniter) error {
	for _, r := range repos {
		if err := r.InitSchema(); err != nil {
			return err
		}
	}
	return nil
}
