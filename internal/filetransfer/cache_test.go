package filetransfer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheLookupMissesUntilCommitted(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)

	if _, ok := c.Lookup("device-b", 42, ".txt", 5, nil); ok {
		t.Fatal("expected a miss before anything is cached")
	}

	temp := c.tempPathFor("device-b", 42)
	if err := os.MkdirAll(filepath.Dir(temp), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(temp, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	final, err := c.Commit("device-b", 42, ".txt", temp)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(final); err != nil {
		t.Fatalf("expected committed file to exist: %v", err)
	}

	path, ok := c.Lookup("device-b", 42, ".txt", 5, nil)
	if !ok || path != final {
		t.Fatalf("expected cache hit at %s, got ok=%v path=%s", final, ok, path)
	}

	if _, ok := c.Lookup("device-b", 42, ".txt", 999, nil); ok {
		t.Fatal("expected size mismatch to miss")
	}

	sum := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if path, ok := c.Lookup("device-b", 42, ".txt", 5, &sum); !ok || path != final {
		t.Fatalf("expected checksum match to hit, got ok=%v path=%s", ok, path)
	}

	wrong := "0000000000000000000000000000000000000000000000000000000000000000"
	if _, ok := c.Lookup("device-b", 42, ".txt", 5, &wrong); ok {
		t.Fatal("expected checksum mismatch to miss despite matching size")
	}
}

func TestCacheClearAndTotalSize(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)

	for _, id := range []int64{1, 2} {
		temp := c.tempPathFor("device-b", id)
		os.MkdirAll(filepath.Dir(temp), 0o755)
		os.WriteFile(temp, []byte("0123456789"), 0o644)
		if _, err := c.Commit("device-b", id, ".bin", temp); err != nil {
			t.Fatal(err)
		}
	}

	total, err := c.TotalSize()
	if err != nil {
		t.Fatal(err)
	}
	if total != 20 {
		t.Fatalf("total size = %d, want 20", total)
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	total, err = c.TotalSize()
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("total size after clear = %d, want 0", total)
	}
}
