package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/familyvault/familyvault-core/internal/scanner"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkSkipsHiddenAndSystemDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")
	writeFile(t, root, "node_modules/pkg/index.js", "console.log(1)")
	writeFile(t, root, ".hidden", "secret")
	writeFile(t, root, "cache.tmp", "junk")

	w := &scanner.Walker{Root: root}
	var got []string
	if err := w.Walk(context.Background(), func(f scanner.ScannedFile) {
		got = append(got, f.RelativePath)
	}); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0] != "a.txt" {
		t.Fatalf("got %v, want only [a.txt]", got)
	}
}

func TestIncludeOverridesDefaultExclusion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/keep.txt", "keep me")

	w := &scanner.Walker{
		Root:  root,
		Rules: scanner.FilterRules{Include: []string{"node_modules/**"}},
	}
	var got []string
	if err := w.Walk(context.Background(), func(f scanner.ScannedFile) {
		got = append(got, f.RelativePath)
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "node_modules/keep.txt" {
		t.Fatalf("got %v, want [node_modules/keep.txt]", got)
	}
}

func TestCountMatchesWalkEmitCount(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "b.txt", "world")
	writeFile(t, root, "c.log", "noise")

	w := &scanner.Walker{Root: root}
	n, err := w.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}

	var emitted int
	w2 := &scanner.Walker{Root: root}
	w2.Walk(context.Background(), func(scanner.ScannedFile) { emitted++ })
	if emitted != n {
		t.Fatalf("Walk emitted %d, Count said %d", emitted, n)
	}
}

func TestCancelStopsWalk(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		writeFile(t, root, filepath.Join("d", string(rune('a'+i%26))+".txt"), "x")
	}

	cancel := &scanner.CancelFlag{}
	cancel.Cancel()

	w := &scanner.Walker{Root: root, Cancel: cancel}
	err := w.Walk(context.Background(), func(scanner.ScannedFile) {})
	if err != scanner.ErrCancelled {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
}

func TestClassifyByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "photo.jpg", "not really a jpeg but extension wins")

	w := &scanner.Walker{Root: root}
	var found scanner.ScannedFile
	w.Walk(context.Background(), func(f scanner.ScannedFile) { found = f })

	if found.MimeType != "image/jpeg" || found.ContentType != scanner.ContentImage {
		t.Fatalf("got mime=%s ct=%s", found.MimeType, found.ContentType)
	}
}
