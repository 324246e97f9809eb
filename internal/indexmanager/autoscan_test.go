package indexmanager_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/familyvault/familyvault-core/internal/indexmanager"
)

func TestServeScansOnEveryTick(t *testing.T) {
	m, db := newManager(t)
	m.AutoScanInterval(20 * time.Millisecond)

	dir := t.TempDir()
	if _, err := m.AddFolder(context.Background(), dir, "docs", indexmanager.VisibilityFamily); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	// Drop a file in after Serve has started; the next tick should pick
	// it up without anyone calling ScanAll directly.
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(fileIDs(t, db)) > 0 {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatal("timed out waiting for auto-scan to index the new file")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
}
