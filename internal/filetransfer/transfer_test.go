package filetransfer_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
	"github.com/familyvault/familyvault-core/internal/filetransfer"
	"github.com/familyvault/familyvault-core/internal/store"
)

func seedOwnedFile(t *testing.T, db *store.DB, content []byte) int64 {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := db.Execute(ctx, `INSERT INTO folders(path, name, enabled, default_visibility) VALUES (?, 'pics', 1, 'family')`, dir)
	if err != nil {
		t.Fatal(err)
	}
	folderID, err := store.LastInsertID(res)
	if err != nil {
		t.Fatal(err)
	}
	res, err = db.Execute(ctx, `INSERT INTO files(folder_id, relative_path, name, extension, size, mime_type, content_type,
		created_at, modified_at, indexed_at, is_remote, sync_version) VALUES (?, 'photo.jpg', 'photo.jpg', '.jpg', ?, 'image/jpeg', 'photo', 1, 1, 1, 0, 1)`,
		folderID, len(content))
	if err != nil {
		t.Fatal(err)
	}
	id, err := store.LastInsertID(res)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func openDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFetchDownloadsAndVerifiesChecksum(t *testing.T) {
	ownerDB := openDB(t)
	content := []byte("pretend jpeg bytes, long enough to span a couple of reads")
	fileID := seedOwnedFile(t, ownerDB, content)
	checksum := cryptoutil.SHA256Hex(content)

	ownerConn, fetcherConn := net.Pipe()
	defer ownerConn.Close()
	defer fetcherConn.Close()

	ownerSess := filetransfer.NewSession(ownerConn, ownerDB, filetransfer.NewCache(t.TempDir()), "fetcher-device", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ownerSess.Run(ctx)

	fetcherCache := filetransfer.NewCache(t.TempDir())
	fetcherSess := filetransfer.NewSession(fetcherConn, openDB(t), fetcherCache, "owner-device", nil)
	go fetcherSess.Run(ctx)

	fetchCtx, fetchCancel := context.WithTimeout(ctx, 2*time.Second)
	defer fetchCancel()

	path, err := fetcherSess.Fetch(fetchCtx, fileID, ".jpg", int64(len(content)), &checksum, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("fetched content mismatch")
	}
}

func TestFetchDetectsChecksumMismatch(t *testing.T) {
	ownerDB := openDB(t)
	content := []byte("actual bytes on the owning device")
	fileID := seedOwnedFile(t, ownerDB, content)
	wrongChecksum := cryptoutil.SHA256Hex([]byte("not the same bytes at all"))

	ownerConn, fetcherConn := net.Pipe()
	defer ownerConn.Close()
	defer fetcherConn.Close()

	ownerSess := filetransfer.NewSession(ownerConn, ownerDB, filetransfer.NewCache(t.TempDir()), "fetcher-device", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ownerSess.Run(ctx)

	fetcherSess := filetransfer.NewSession(fetcherConn, openDB(t), filetransfer.NewCache(t.TempDir()), "owner-device", nil)
	go fetcherSess.Run(ctx)

	fetchCtx, fetchCancel := context.WithTimeout(ctx, 2*time.Second)
	defer fetchCancel()

	_, err := fetcherSess.Fetch(fetchCtx, fileID, ".bin", int64(len(content)), &wrongChecksum, nil)
	if err != filetransfer.ErrChecksumMismatch {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestFetchShortCircuitsFromCache(t *testing.T) {
	cache := filetransfer.NewCache(t.TempDir())
	fetcherSess := filetransfer.NewSession(nil, openDB(t), cache, "owner-device", nil)

	content := []byte("already cached bytes")
	// Pre-populate the cache directly, bypassing the wire entirely.
	path, err := writeDirectToCache(cache, "owner-device", 7, ".txt", content)
	if err != nil {
		t.Fatal(err)
	}

	got, err := fetcherSess.Fetch(context.Background(), 7, ".txt", int64(len(content)), nil, nil)
	if err != nil {
		t.Fatalf("expected cache short-circuit to succeed without a connection: %v", err)
	}
	if got != path {
		t.Fatalf("got %s, want %s", got, path)
	}
}

func writeDirectToCache(cache *filetransfer.Cache, deviceID string, fileID int64, ext string, content []byte) (string, error) {
	dir, err := os.MkdirTemp("", "ft-cache-seed")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)
	temp := filepath.Join(dir, "seed")
	if err := os.WriteFile(temp, content, 0o644); err != nil {
		return "", err
	}
	return cache.Commit(deviceID, fileID, ext, temp)
}
