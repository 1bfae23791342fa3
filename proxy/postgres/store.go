package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/marcelsud/webhook-proxy/proxy"
)

/*
PostgreSQL implementation of proxy.Store

A durable alternative to Redis for deployments that already run Postgres.
Every mapping is one row keyed by the namespaced key; writes are upserts so
the last writer wins, as with the other backends.
*/

// compile-time interface check
var (
	_ proxy.Store   = (*Store)(nil)
	_ proxy.Counter = (*Store)(nil)
)

type Store struct {
	DB *sql.DB
}

// NewStore opens a store with the default pool (25 open, 5 idle, 5 min lifetime)
func NewStore(connectionString string) (*Store, error) {
	return NewStoreWithPoolConfig(connectionString, 25, 5, 5)
}

// NewStoreWithPoolConfig opens a store with a custom connection pool
// maxOpenConns: maximum simultaneous connections (0 = unlimited)
// maxIdleConns: idle connections kept in the pool
// maxLifeMinutes: how long a connection may be reused
func NewStoreWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	return newStore(db, maxOpenConns, maxIdleConns, maxLifeMinutes)
}

// newStore verifies db and applies the pool settings; db is closed if it cannot be reached
func newStore(db *sql.DB, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Store, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Store{
		DB: db,
	}, nil
}

// Migrate creates the mappings table if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS webhook_mappings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`

	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	return nil
}

// Get returns the value for key or proxy.ErrNotFound
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	query := "SELECT value FROM webhook_mappings WHERE key = $1"

	var value string
	err := s.DB.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", proxy.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("selecting mapping: %w", err)
	}
	return value, nil
}

// Set upserts value under key
func (s *Store) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO webhook_mappings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := s.DB.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upserting mapping: %w", err)
	}
	return nil
}

// CountMappings returns the number of rows under proxy.KeyPrefix
func (s *Store) CountMappings(ctx context.Context) (int64, error) {
	query := "SELECT COUNT(*) FROM webhook_mappings WHERE key LIKE $1"

	var n int64
	if err := s.DB.QueryRowContext(ctx, query, proxy.KeyPrefix+"%").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting mappings: %w", err)
	}
	return n, nil
}

// Close closes the connection pool
func (s *Store) Close(ctx context.Context) error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
