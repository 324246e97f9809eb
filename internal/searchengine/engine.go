package searchengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/familyvault/familyvault-core/internal/indexmanager"
	"github.com/familyvault/familyvault-core/internal/scanner"
	"github.com/familyvault/familyvault-core/internal/store"
)

const defaultLimit = 50

// suggestCacheSize bounds the number of distinct prefix/limit pairs kept
// from Suggest, keyed on the typeahead assumption that a user re-issuing
// the same keystroke prefix should not re-run the UNION query.
const suggestCacheSize = 256

// Engine composes FTS and structured filters against the Store (§4.7).
type Engine struct {
	db           *store.DB
	suggestCache *lru.Cache[string, []string]
}

// New constructs an Engine bound to db, adding a Store reference.
func New(db *store.DB) *Engine {
	db.AddRef()
	cache, err := lru.New[string, []string](suggestCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// suggestCacheSize never is.
		panic(err)
	}
	return &Engine{db: db, suggestCache: cache}
}

// Close releases the Engine's Store reference.
func (e *Engine) Close() {
	e.db.Release()
}

var fileColumns = `f.id, f.folder_id, f.relative_path, f.name, f.extension, f.size, f.mime_type, f.content_type,
	f.checksum, f.created_at, f.modified_at, f.indexed_at, f.visibility, f.source_device_id, f.remote_id,
	f.is_remote, f.sync_version, f.last_modified_by`

// Search returns a single page of matching files, ordered and paginated
// per q (§4.7).
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}

	fs := buildFilters(q)
	selectCols := fileColumns
	if fs.usesFTS {
		selectCols += `, snippet(files_fts, 1, '[', ']', '…', 10)`
	}
	sqlQuery := "SELECT " + selectCols + " FROM files f LEFT JOIN folders fo ON fo.id = f.folder_id " +
		fs.joinClause() + " " + fs.whereClause() + " " + orderClause(q, fs.usesFTS) + " LIMIT ? OFFSET ?"

	args := append(append([]any{}, fs.args...), q.Limit, q.Offset)

	mapper := func(r *sql.Rows) (Result, error) {
		rec, err := scanFileColumnsWithSnippet(r, fs.usesFTS)
		return rec, err
	}

	return store.Query[Result](ctx, e.db, sqlQuery, mapper, args...)
}

func scanFileColumnsWithSnippet(r *sql.Rows, hasSnippet bool) (Result, error) {
	var rec indexmanager.FileRecord
	var folderID sql.NullInt64
	var checksum, visibility, sourceDevice, remoteID, lastModifiedBy, snip sql.NullString
	var isRemote int
	var contentType string

	dest := []any{&rec.ID, &folderID, &rec.RelativePath, &rec.Name, &rec.Extension, &rec.Size,
		&rec.MimeType, &contentType, &checksum, &rec.CreatedAt, &rec.ModifiedAt, &rec.IndexedAt,
		&visibility, &sourceDevice, &remoteID, &isRemote, &rec.SyncVersion, &lastModifiedBy}
	if hasSnippet {
		dest = append(dest, &snip)
	}
	if err := r.Scan(dest...); err != nil {
		return Result{}, err
	}

	rec.ContentType = scanner.ContentType(contentType)
	rec.IsRemote = isRemote != 0
	if folderID.Valid {
		rec.FolderID = folderID.Int64
	}
	if checksum.Valid {
		rec.Checksum = &checksum.String
	}
	if visibility.Valid {
		v := indexmanager.Visibility(visibility.String)
		rec.Visibility = &v
	}
	if sourceDevice.Valid {
		rec.SourceDeviceID = &sourceDevice.String
	}
	if remoteID.Valid {
		rec.RemoteID = &remoteID.String
	}
	if lastModifiedBy.Valid {
		rec.LastModifiedBy = &lastModifiedBy.String
	}
	return Result{File: rec, Snippet: snip.String}, nil
}

// CountResults returns the total matching cardinality for q, ignoring
// pagination (§4.7).
func (e *Engine) CountResults(ctx context.Context, q Query) (int64, error) {
	fs := buildFilters(q)
	sqlQuery := "SELECT COUNT(*) FROM files f LEFT JOIN folders fo ON fo.id = f.folder_id " +
		fs.joinClause() + " " + fs.whereClause()
	return store.QueryScalar[int64](ctx, e.db, sqlQuery, fs.args...)
}

// Suggest returns distinct tag names and local filenames starting with
// prefix, in name order (§4.7); how recently a name was used or indexed
// does not affect the result. Results for a given prefix/limit pair are cached, since a
// typeahead caller re-issues the same query on every repeated keystroke.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	cacheKey := fmt.Sprintf("%s\x00%d", prefix, limit)
	if cached, ok := e.suggestCache.Get(cacheKey); ok {
		return cached, nil
	}

	like := strings.ReplaceAll(strings.ReplaceAll(prefix, "%", "\\%"), "_", "\\_") + "%"

	names, err := store.Query[string](ctx, e.db, `
		SELECT DISTINCT name FROM (
			SELECT name FROM tags WHERE name LIKE ? ESCAPE '\'
			UNION
			SELECT name FROM files WHERE name LIKE ? ESCAPE '\' AND is_remote = 0
		) ORDER BY name LIMIT ?`,
		func(r *sql.Rows) (string, error) {
			var s string
			err := r.Scan(&s)
			return s, err
		}, like, like, limit)
	if err != nil {
		return nil, err
	}

	e.suggestCache.Add(cacheKey, names)
	return names, nil
}

// InvalidateSuggestions discards every cached Suggest result. A caller
// that scans new files or tags into the Store should call this so
// Suggest doesn't keep answering from a table snapshot taken before the
// scan (§4.5's ContentExtractor and §4.4's Scanner both add new tag/file
// names Suggest draws from).
func (e *Engine) InvalidateSuggestions() {
	e.suggestCache.Purge()
}
