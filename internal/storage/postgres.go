package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"
)

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS cart_state (
		key      TEXT PRIMARY KEY,
		value    TEXT NOT NULL,
		modified TIMESTAMPTZ NOT NULL
	)
`

// Postgres is a Blobs implementation stored in a PostgreSQL table.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to dsn, verifies the connection and creates the
// cart_state table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping postgres: %w", err), db.Close())
	}
	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create cart_state table: %w", err), db.Close())
	}
	return &Postgres{db: db}, nil
}

// Load implements Blobs.
func (p *Postgres) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM cart_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %q: %w", key, err)
	}
	return []byte(value), nil
}

// Save implements Blobs.
func (p *Postgres) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errEmptyKey
	}
	query := `
		INSERT INTO cart_state (key, value, modified)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, modified = EXCLUDED.modified
	`
	if _, err := p.db.ExecContext(ctx, query, key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

var _ Blobs = (*Postgres)(nil)
