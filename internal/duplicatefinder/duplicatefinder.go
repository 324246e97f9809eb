// Package duplicatefinder implements §4.8's checksum-based duplicate
// grouping and safe-delete half of TagManager/DuplicateFinder.
package duplicatefinder

import (
	"context"
	"database/sql"

	"github.com/familyvault/familyvault-core/internal/fverrors"
	"github.com/familyvault/familyvault-core/internal/indexmanager"
	"github.com/familyvault/familyvault-core/internal/scanner"
	"github.com/familyvault/familyvault-core/internal/store"
)

// Group is a set of local file rows sharing the same checksum (§4.8).
type Group struct {
	Checksum         string
	FileIDs          []int64
	Size             int64
	Copies           int
	PotentialSavings int64
}

// Finder owns a Store reference.
type Finder struct {
	db *store.DB
}

// New constructs a Finder bound to db, adding a Store reference.
func New(db *store.DB) *Finder {
	db.AddRef()
	return &Finder{db: db}
}

// Close releases the Finder's Store reference.
func (f *Finder) Close() {
	f.db.Release()
}

type groupRow struct {
	checksum string
	size     int64
	count    int64
}

// FindDuplicates groups local rows (is_remote = 0) by non-null checksum;
// a group is returned iff it has 2 or more copies (§4.8).
func (f *Finder) FindDuplicates(ctx context.Context) ([]Group, error) {
	rows, err := store.Query[groupRow](ctx, f.db, `
		SELECT checksum, size, COUNT(*) FROM files
		WHERE is_remote = 0 AND checksum IS NOT NULL
		GROUP BY checksum, size HAVING COUNT(*) >= 2`,
		func(r *sql.Rows) (groupRow, error) {
			var g groupRow
			err := r.Scan(&g.checksum, &g.size, &g.count)
			return g, err
		})
	if err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(rows))
	for _, g := range rows {
		ids, err := store.Query[int64](ctx, f.db,
			`SELECT id FROM files WHERE is_remote = 0 AND checksum = ? ORDER BY id`,
			func(r *sql.Rows) (int64, error) { var v int64; err := r.Scan(&v); return v, err }, g.checksum)
		if err != nil {
			return nil, err
		}
		groups = append(groups, Group{
			Checksum:         g.checksum,
			FileIDs:          ids,
			Size:             g.size,
			Copies:           int(g.count),
			PotentialSavings: g.size * (g.count - 1),
		})
	}
	return groups, nil
}

// FilesWithoutBackup returns local rows whose checksum has no matching
// row on any remote device (§4.8).
func (f *Finder) FilesWithoutBackup(ctx context.Context) ([]indexmanager.FileRecord, error) {
	return store.Query[indexmanager.FileRecord](ctx, f.db, `
		SELECT f.id, f.folder_id, f.relative_path, f.name, f.extension, f.size, f.mime_type, f.content_type,
			f.checksum, f.created_at, f.modified_at, f.indexed_at
		FROM files f
		WHERE f.is_remote = 0 AND f.checksum IS NOT NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM files r WHERE r.is_remote = 1 AND r.checksum = f.checksum
		  )`,
		scanBasicFileRecord)
}

func scanBasicFileRecord(r *sql.Rows) (indexmanager.FileRecord, error) {
	var rec indexmanager.FileRecord
	var folderID sql.NullInt64
	var checksum sql.NullString
	var contentType string
	if err := r.Scan(&rec.ID, &folderID, &rec.RelativePath, &rec.Name, &rec.Extension, &rec.Size,
		&rec.MimeType, &contentType, &checksum, &rec.CreatedAt, &rec.ModifiedAt, &rec.IndexedAt); err != nil {
		return rec, err
	}
	if folderID.Valid {
		rec.FolderID = folderID.Int64
	}
	if checksum.Valid {
		rec.Checksum = &checksum.String
	}
	rec.ContentType = scanner.ContentType(contentType)
	return rec, nil
}

// Deleter is the subset of IndexManager's behavior DuplicateFinder needs
// to delete a file while keeping folder counters consistent (§4.8
// "going through IndexManager if available").
type Deleter interface {
	DeleteFile(ctx context.Context, id int64, deleteFromDisk bool) error
}

// KeepOnlyOne deletes every local copy sharing checksum except keepID. If
// mgr is non-nil, deletion routes through it so folder counters stay
// consistent; otherwise rows are deleted directly and do not remove bytes
// from disk.
func (f *Finder) KeepOnlyOne(ctx context.Context, checksum string, keepID int64, mgr Deleter) error {
	ids, err := store.Query[int64](ctx, f.db,
		`SELECT id FROM files WHERE is_remote = 0 AND checksum = ? AND id != ?`,
		func(r *sql.Rows) (int64, error) { var v int64; err := r.Scan(&v); return v, err }, checksum, keepID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if mgr != nil {
			if err := mgr.DeleteFile(ctx, id, true); err != nil {
				return err
			}
			continue
		}
		if _, err := f.db.Execute(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
			return fverrors.Wrap(fverrors.Database, "duplicatefinder.KeepOnlyOne", err)
		}
	}
	return nil
}
