package database

import (
	"database/sql"
	"testing"
)

// NewTestDB creates a new in-memory SQLite ledger store for testing.
// The database is closed when the test finishes.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()
	db, _, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("expected a database connection, got error: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
