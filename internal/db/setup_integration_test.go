//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL and clears
// the tables this package owns. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	db, err := Connect(context.Background(), databaseURL)
	require.NoError(t, err)

	_, err = db.pool.Exec(context.Background(),
		`TRUNCATE runs, artifacts, audit_events, download_tokens`)
	require.NoError(t, err)

	return db
}
