// Package pgtest starts a throwaway Postgres for repository integration tests.
package pgtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start runs postgres:16-alpine, applies the embedded migrations and returns a pool.
// Skipped under -short.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn))

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

var serial atomic.Int64

// InsertProduct seeds an undiscounted product and returns its id.
func InsertProduct(t *testing.T, db *pgxpool.Pool, name, price string, stock int) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO products (name, model, serial_number, description, quantity_in_stock, price, cost, category)
		VALUES ($1, 'TEST', $2, '', $3, $4::numeric, $4::numeric / 2, 'Test')
		RETURNING id`,
		name, fmt.Sprintf("SN-TEST-%d", serial.Add(1)), stock, price,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// Stock reads quantity_in_stock directly.
func Stock(t *testing.T, db *pgxpool.Pool, productID int64) int {
	t.Helper()
	var n int
	err := db.QueryRow(context.Background(),
		`SELECT quantity_in_stock FROM products WHERE id=$1`, productID).Scan(&n)
	require.NoError(t, err)
	return n
}
