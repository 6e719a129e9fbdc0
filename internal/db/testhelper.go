package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated ledger in t.TempDir() and closes it on cleanup.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	l, err := OpenLedger(context.Background(), filepath.Join(t.TempDir(), "ledger", "runs.sqlite"))
	if err != nil {
		t.Fatalf("open test ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l.Write, l.Read
}
