package store_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/familyvault/familyvault-core/internal/fverrors"
	"github.com/familyvault/familyvault-core/internal/store"
)

func openTemp(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesSchema(t *testing.T) {
	db := openTemp(t)
	v, err := store.QueryScalar[int](context.Background(), db, `SELECT COUNT(*) FROM schema_versions`)
	if err != nil {
		t.Fatal(err)
	}
	if v == 0 {
		t.Fatalf("expected at least one migration recorded")
	}
}

func TestRefCountingBusyThenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	db.AddRef() // simulate one manager constructed on top of db

	if err := db.Close(); fverrors.KindOf(err) != fverrors.Busy {
		t.Fatalf("Close with live manager: got %v, want Busy", err)
	}

	db.Release() // manager destroyed

	if err := db.Close(); err != nil {
		t.Fatalf("Close after release: %v", err)
	}

	// A fresh open on the same path must still work.
	db2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	db2.Close()
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := db.WithTransaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.Execute(ctx, `INSERT INTO tags(name, source) VALUES (?, 'user')`, "vacation"); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}

	n, err := store.QueryScalar[int](ctx, db, `SELECT COUNT(*) FROM tags WHERE name = ?`, "vacation")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected rollback to discard insert, found %d rows", n)
	}
}

func TestTransactionCommits(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *store.Tx) error {
		_, err := tx.Execute(ctx, `INSERT INTO tags(name, source) VALUES (?, 'user')`, "vacation")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := store.QueryScalar[int](ctx, db, `SELECT COUNT(*) FROM tags WHERE name = ?`, "vacation")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected committed insert to be visible, got %d rows", n)
	}
}

func TestQueryOneNotFound(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	_, err := store.QueryOne(ctx, db, `SELECT name FROM tags WHERE name = ?`, func(r *sql.Rows) (string, error) {
		var s string
		err := r.Scan(&s)
		return s, err
	}, "nope")
	if fverrors.KindOf(err) != fverrors.NotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}
