// Package tests provides integration test helpers and utilities.
package tests

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/leadwire/relay/pkg/database"
)

const testAPIKey = "test-api-key-12345"

// testPool connects to the database named by DATABASE_URL, skipping the test
// when the variable is unset (integration tests need a running Postgres).
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	db, err := database.NewPostgresPool(context.Background(), databaseURL, nil)
	require.NoError(t, err, "Failed to connect to database")

	t.Cleanup(db.Close)

	return db
}

// cleanupTestData removes rows created during tests (all test rows carry the
// itest- prefix on their identifying column).
func cleanupTestData(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	statements := []string{
		"DELETE FROM webhook_subscriptions WHERE name LIKE 'itest-%'",
		"DELETE FROM notifications WHERE title LIKE 'itest-%'",
		"DELETE FROM leads WHERE name LIKE 'itest-%'",
		"DELETE FROM exchange_alerts WHERE user_id LIKE 'itest-%'",
	}
	for _, stmt := range statements {
		_, err := db.Exec(ctx, stmt)
		require.NoError(t, err)
	}
}
