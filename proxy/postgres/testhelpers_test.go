//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
Test helpers for the PostgreSQL store

Starts a real PostgreSQL container, returns a migrated store and terminates
the container when the test ends.

Run with: go test -tags=integration ./proxy/postgres/
*/

const (
	defaultDatabase = "testdb"
	defaultUser     = "testuser"
	defaultPassword = "testpass"
)

// SetupPostgresStore starts PostgreSQL and returns a migrated store on it
func SetupPostgresStore(tb testing.TB, ctx context.Context) *Store {
	tb.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(defaultDatabase),
		tcpostgres.WithUsername(defaultUser),
		tcpostgres.WithPassword(defaultPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(tb, err)
	tb.Cleanup(func() {
		_ = pgContainer.Terminate(ctx)
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(tb, err)

	store, err := NewStore(connStr)
	require.NoError(tb, err)
	tb.Cleanup(func() { store.Close(ctx) })

	require.NoError(tb, store.Migrate(ctx))
	return store
}
