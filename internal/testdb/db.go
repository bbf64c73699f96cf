package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/phrazzld/vaultcore/internal/platform/postgres"
	"github.com/phrazzld/vaultcore/internal/redact"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 10 * time.Second

// GetTestDatabaseURL returns the database URL for tests. It checks
// VAULT_TEST_DATABASE_URL and DATABASE_URL in that order.
func GetTestDatabaseURL() string {
	if url := os.Getenv("VAULT_TEST_DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("DATABASE_URL")
}

// SkipIfNoDatabase skips the test when no database URL is configured.
func SkipIfNoDatabase(t *testing.T) {
	t.Helper()
	if GetTestDatabaseURL() == "" {
		t.Skip("VAULT_TEST_DATABASE_URL not set; skipping database test")
	}
}

// OpenTestDatabase connects to the test database, migrates it to the latest
// schema and empties the ledger. The connection is closed on cleanup.
func OpenTestDatabase(t *testing.T) *sql.DB {
	t.Helper()
	SkipIfNoDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := postgres.Open(ctx, GetTestDatabaseURL(), 5, log)
	require.NoError(t, err, "failed to connect to %s", redact.String(GetTestDatabaseURL()))
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.Migrate(ctx, db, "up", log), "failed to migrate test database")
	ResetLedger(t, db)
	return db
}

// ResetLedger removes every account and transaction.
func ResetLedger(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx, "TRUNCATE transactions, accounts")
	require.NoError(t, err, "failed to reset ledger tables")
}
