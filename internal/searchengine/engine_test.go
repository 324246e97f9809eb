package searchengine_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/familyvault/familyvault-core/internal/searchengine"
	"github.com/familyvault/familyvault-core/internal/store"
)

func seedDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	res, err := db.Execute(ctx, `INSERT INTO folders(path, name, enabled, default_visibility) VALUES ('/vault', 'vault', 1, 'family')`)
	if err != nil {
		t.Fatal(err)
	}
	folderID, _ := store.LastInsertID(res)

	insert := func(name, relPath, contentType string, size int64, modifiedAt int64) int64 {
		res, err := db.Execute(ctx, `INSERT INTO files(folder_id, relative_path, name, extension, size, mime_type,
			content_type, created_at, modified_at, indexed_at, is_remote, sync_version)
			VALUES (?, ?, ?, '.txt', ?, 'text/plain', ?, 1, ?, 1, 0, 0)`,
			folderID, relPath, name, size, contentType, modifiedAt)
		if err != nil {
			t.Fatal(err)
		}
		id, _ := store.LastInsertID(res)
		return id
	}

	recipeID := insert("recipe.txt", "recipe.txt", "document", 100, 1000)
	insert("photo.jpg", "photo.jpg", "image", 500, 2000)

	if _, err := db.Execute(ctx, `INSERT INTO files_fts(rowid, name, text) VALUES (?, ?, ?)`,
		recipeID, "recipe.txt", "grandma's apple pie recipe"); err != nil {
		t.Fatal(err)
	}

	return db
}

func TestSearchByContentType(t *testing.T) {
	db := seedDB(t)
	e := searchengine.New(db)
	defer e.Close()

	results, err := e.Search(context.Background(), searchengine.Query{ContentType: "image"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].File.Name != "photo.jpg" {
		t.Fatalf("expected exactly photo.jpg, got %+v", results)
	}
}

func TestSearchByTextMatchesFTS(t *testing.T) {
	db := seedDB(t)
	e := searchengine.New(db)
	defer e.Close()

	results, err := e.Search(context.Background(), searchengine.Query{Text: "apple pie"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].File.Name != "recipe.txt" {
		t.Fatalf("expected recipe.txt, got %+v", results)
	}
}

func TestSearchOrderRelevanceUsesFTSRank(t *testing.T) {
	db := seedDB(t)
	e := searchengine.New(db)
	defer e.Close()

	results, err := e.Search(context.Background(), searchengine.Query{
		Text:    "apple pie",
		OrderBy: searchengine.OrderRelevance,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].File.Name != "recipe.txt" {
		t.Fatalf("expected recipe.txt ranked by FTS relevance, got %+v", results)
	}
}

func TestCountResultsMatchesSearchLength(t *testing.T) {
	db := seedDB(t)
	e := searchengine.New(db)
	defer e.Close()

	count, err := e.CountResults(context.Background(), searchengine.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 total rows, got %d", count)
	}
}

func TestSuggestMatchesPrefix(t *testing.T) {
	db := seedDB(t)
	e := searchengine.New(db)
	defer e.Close()

	names, err := e.Suggest(context.Background(), "rec", 10)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range names {
		if n == "recipe.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected recipe.txt among suggestions, got %v", names)
	}
}

func TestSuggestServesStaleResultsFromCacheUntilInvalidated(t *testing.T) {
	db := seedDB(t)
	e := searchengine.New(db)
	defer e.Close()

	ctx := context.Background()
	if _, err := e.Suggest(ctx, "rec", 10); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Execute(ctx, `UPDATE files SET name = 'renamed.txt' WHERE name = 'recipe.txt'`); err != nil {
		t.Fatal(err)
	}

	names, err := e.Suggest(ctx, "rec", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "recipe.txt" {
		t.Fatalf("expected cached result still naming recipe.txt, got %v", names)
	}

	e.InvalidateSuggestions()
	names, err = e.Suggest(ctx, "rec", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if n == "recipe.txt" {
			t.Fatalf("expected cache invalidation to pick up the rename, still saw recipe.txt in %v", names)
		}
	}
}
