package database

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema
// applied.  The pool is limited to one connection because every
// connection to ":memory:" is a separate database; concurrent callers
// queue for it, which still exercises the conditional updates.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		t.Fatalf("enabling foreign keys: %v", err)
	}
	if err := EnsureSchema(context.Background(), db, DialectSQLite); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
