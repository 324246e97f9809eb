// Package tagmanager implements §4.8's tagging half: idempotent user
// tagging plus deterministic auto-tagging from a file's own metadata.
package tagmanager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/familyvault/familyvault-core/internal/fverrors"
	"github.com/familyvault/familyvault-core/internal/store"
)

// Source distinguishes how a tag came to be attached to a file (§3).
type Source string

const (
	SourceUser Source = "user"
	SourceAuto Source = "auto"
	SourceAI   Source = "ai"
)

// Manager owns a Store reference for tag operations.
type Manager struct {
	db *store.DB
}

// New constructs a Manager bound to db, adding a Store reference.
func New(db *store.DB) *Manager {
	db.AddRef()
	return &Manager{db: db}
}

// Close releases the Manager's Store reference.
func (m *Manager) Close() {
	m.db.Release()
}

// AddTag attaches name to fileID, creating the tag row if it doesn't
// already exist. Re-adding an existing (file, tag) pair is a no-op (§4.8
// "tag addition is idempotent").
func (m *Manager) AddTag(ctx context.Context, fileID int64, name string, source Source) error {
	return m.db.WithTransaction(ctx, func(tx *store.Tx) error {
		tagID, err := upsertTag(ctx, tx, name, source)
		if err != nil {
			return err
		}
		if _, err := tx.Execute(ctx,
			`INSERT OR IGNORE INTO file_tags(file_id, tag_id) VALUES (?, ?)`, fileID, tagID); err != nil {
			return err
		}
		return refreshTagCount(ctx, tx, tagID)
	})
}

// RemoveTag detaches name from fileID, if attached.
func (m *Manager) RemoveTag(ctx context.Context, fileID int64, name string) error {
	return m.db.WithTransaction(ctx, func(tx *store.Tx) error {
		tagID, err := store.TxQuery[int64](ctx, tx, `SELECT id FROM tags WHERE name = ?`,
			func(r *sql.Rows) (int64, error) { var v int64; err := r.Scan(&v); return v, err }, name)
		if err != nil {
			return err
		}
		if len(tagID) == 0 {
			return nil
		}
		if _, err := tx.Execute(ctx, `DELETE FROM file_tags WHERE file_id = ? AND tag_id = ?`, fileID, tagID[0]); err != nil {
			return err
		}
		return refreshTagCount(ctx, tx, tagID[0])
	})
}

// Tags returns the names currently attached to fileID.
func (m *Manager) Tags(ctx context.Context, fileID int64) ([]string, error) {
	return store.Query[string](ctx, m.db, `
		SELECT t.name FROM tags t JOIN file_tags ft ON ft.tag_id = t.id
		WHERE ft.file_id = ? ORDER BY t.name`,
		func(r *sql.Rows) (string, error) { var s string; err := r.Scan(&s); return s, err }, fileID)
}

func upsertTag(ctx context.Context, tx *store.Tx, name string, source Source) (int64, error) {
	ids, err := store.TxQuery[int64](ctx, tx, `SELECT id FROM tags WHERE name = ?`,
		func(r *sql.Rows) (int64, error) { var v int64; err := r.Scan(&v); return v, err }, name)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		return ids[0], nil
	}
	res, err := tx.Execute(ctx, `INSERT INTO tags(name, source, file_count) VALUES (?, ?, 0)`, name, string(source))
	if err != nil {
		return 0, err
	}
	return store.LastInsertID(res)
}

func refreshTagCount(ctx context.Context, tx *store.Tx, tagID int64) error {
	count, err := store.TxQuery[int64](ctx, tx, `SELECT COUNT(*) FROM file_tags WHERE tag_id = ?`,
		func(r *sql.Rows) (int64, error) { var v int64; err := r.Scan(&v); return v, err }, tagID)
	if err != nil {
		return err
	}
	n := int64(0)
	if len(count) > 0 {
		n = count[0]
	}
	_, err = tx.Execute(ctx, `UPDATE tags SET file_count = ? WHERE id = ?`, n, tagID)
	return err
}

type fileMeta struct {
	contentType string
	extension   string
	size        int64
	modifiedAt  int64
}

// AutoTag derives and attaches deterministic tags from fileID's own
// content_type, extension, modified date, and size bucket (§4.8), each
// recorded with Source = auto.
func (m *Manager) AutoTag(ctx context.Context, fileID int64) ([]string, error) {
	meta, err := store.QueryOne[fileMeta](ctx, m.db,
		`SELECT content_type, extension, size, modified_at FROM files WHERE id = ?`,
		func(r *sql.Rows) (fileMeta, error) {
			var fm fileMeta
			err := r.Scan(&fm.contentType, &fm.extension, &fm.size, &fm.modifiedAt)
			return fm, err
		}, fileID)
	if err != nil {
		return nil, fverrors.Wrap(fverrors.NotFound, "tagmanager.AutoTag", err)
	}

	names := autoTagNames(meta)
	for _, name := range names {
		if err := m.AddTag(ctx, fileID, name, SourceAuto); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func autoTagNames(meta fileMeta) []string {
	var names []string
	if meta.contentType != "" && meta.contentType != "unknown" {
		names = append(names, meta.contentType)
	}
	if meta.extension != "" {
		names = append(names, meta.extension)
	}

	t := time.Unix(meta.modifiedAt, 0).UTC()
	names = append(names, fmt.Sprintf("%04d", t.Year()))
	names = append(names, fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
	names = append(names, season(t.Month()))
	names = append(names, sizeBucket(meta.size))
	return names
}

func season(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "fall"
	}
}

func sizeBucket(size int64) string {
	const kb = 1024
	const mb = 1024 * kb
	const gb = 1024 * mb
	switch {
	case size < mb:
		return "size-small"
	case size < 10*mb:
		return "size-medium"
	case size < gb:
		return "size-large"
	default:
		return "size-huge"
	}
}
