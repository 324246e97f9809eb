package indexmanager_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/familyvault/familyvault-core/internal/indexmanager"
	"github.com/familyvault/familyvault-core/internal/store"
)

func newManager(t *testing.T) (*indexmanager.Manager, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	m := indexmanager.New(db, nil)
	t.Cleanup(func() {
		m.Close()
		db.Close()
	})
	return m, db
}

func TestRescanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, db := newManager(t)

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("world"), 0o644)

	folderID, err := m.AddFolder(ctx, dir, "docs", indexmanager.VisibilityFamily)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.ScanFolder(ctx, folderID, nil); err != nil {
		t.Fatal(err)
	}
	ids1 := fileIDs(t, db)

	if err := m.ScanFolder(ctx, folderID, nil); err != nil {
		t.Fatal(err)
	}
	ids2 := fileIDs(t, db)

	if len(ids1) != 2 || len(ids2) != 2 {
		t.Fatalf("expected 2 files both times, got %d then %d", len(ids1), len(ids2))
	}
	for i := range ids1 {
		if ids1[i] != ids2[i] {
			t.Fatalf("ids changed across rescan: %v -> %v", ids1, ids2)
		}
	}
}

func TestTombstoningRemovesVanishedFiles(t *testing.T) {
	ctx := context.Background()
	m, db := newManager(t)

	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.txt")
	os.WriteFile(aPath, []byte("hello"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("world"), 0o644)

	folderID, err := m.AddFolder(ctx, dir, "docs", indexmanager.VisibilityFamily)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ScanFolder(ctx, folderID, nil); err != nil {
		t.Fatal(err)
	}
	if n := len(fileIDs(t, db)); n != 2 {
		t.Fatalf("expected 2 files after first scan, got %d", n)
	}

	os.Remove(aPath)
	if err := m.ScanFolder(ctx, folderID, nil); err != nil {
		t.Fatal(err)
	}
	if n := len(fileIDs(t, db)); n != 1 {
		t.Fatalf("expected 1 file after removal+rescan, got %d", n)
	}
}

func TestCascadeDeletesFilesOnFolderRemoval(t *testing.T) {
	ctx := context.Background()
	m, db := newManager(t)

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644)

	folderID, err := m.AddFolder(ctx, dir, "docs", indexmanager.VisibilityFamily)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ScanFolder(ctx, folderID, nil); err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveFolder(ctx, folderID); err != nil {
		t.Fatal(err)
	}
	if n := len(fileIDs(t, db)); n != 0 {
		t.Fatalf("expected cascade delete to remove files, found %d", n)
	}
}

func fileIDs(t *testing.T, db *store.DB) []int64 {
	t.Helper()
	ids, err := store.Query[int64](context.Background(), db, `SELECT id FROM files ORDER BY id`,
		func(r *sql.Rows) (int64, error) {
			var v int64
			err := r.Scan(&v)
			return v, err
		})
	if err != nil {
		t.Fatal(err)
	}
	return ids
}
