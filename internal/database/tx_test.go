package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func countSellers(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sellers`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func insertSeller(ctx context.Context, tx *sql.Tx, email string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sellers (email, password_hash) VALUES (?, 'x')`, email)
	return err
}

func TestWithTxCommits(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	err := WithTx(ctx, db, func(tx *sql.Tx) error { return insertSeller(ctx, tx, "a@example.com") })
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if n := countSellers(t, db); n != 1 {
		t.Errorf("sellers = %d, want 1", n)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := insertSeller(ctx, tx, "a@example.com"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n := countSellers(t, db); n != 0 {
		t.Errorf("sellers = %d after rollback, want 0", n)
	}
}

func TestQueryAllEmpty(t *testing.T) {
	db := NewTestDB(t)
	got, err := QueryAll(context.Background(), db, func(rows *sql.Rows) (string, error) {
		var s string
		return s, rows.Scan(&s)
	}, `SELECT email FROM sellers`)
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	db := NewTestDB(t)
	if err := EnsureSchema(context.Background(), db, DialectSQLite); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}
