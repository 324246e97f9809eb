package indexmanager

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/fverrors"
	"github.com/familyvault/familyvault-core/internal/logger"
	"github.com/familyvault/familyvault-core/internal/scanner"
	"github.com/familyvault/familyvault-core/internal/store"
)

var log = logger.New("indexmanager")

// Manager owns the Scanner and a reference to the shared Store. Per §3's
// ownership rule, Manager is exclusively owned by its creator and
// AddRef/Release the Store on construction/Close.
type Manager struct {
	db     *store.DB
	bus    *events.Logger
	cancel *scanner.CancelFlag

	autoScanInterval time.Duration
}

// New constructs a Manager bound to db, incrementing its reference count.
func New(db *store.DB, bus *events.Logger) *Manager {
	db.AddRef()
	return &Manager{db: db, bus: bus, cancel: &scanner.CancelFlag{}}
}

// Close releases the Manager's reference to the Store.
func (m *Manager) Close() {
	m.db.Release()
}

// AddFolder normalizes path, requires it to exist and be a directory, and
// upserts a folder row by path: re-adding an already-known path returns
// its existing id and leaves its file rows untouched.
func (m *Manager) AddFolder(ctx context.Context, path, name string, visibility Visibility) (int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fverrors.Wrap(fverrors.InvalidArgument, "indexmanager.AddFolder", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fverrors.Wrap(fverrors.Io, "indexmanager.AddFolder", err)
	}
	if !info.IsDir() {
		return 0, fverrors.New(fverrors.InvalidArgument, "indexmanager.AddFolder", "path is not a directory")
	}
	if visibility == "" {
		visibility = VisibilityPrivate
	}

	existing, err := store.QueryOne[int64](ctx, m.db, `SELECT id FROM folders WHERE path = ?`, scanInt64, abs)
	if err == nil {
		return existing, nil
	}
	if fverrors.KindOf(err) != fverrors.NotFound {
		return 0, err
	}

	res, err := m.db.Execute(ctx,
		`INSERT INTO folders(path, name, enabled, default_visibility) VALUES (?, ?, 1, ?)`,
		abs, name, string(visibility))
	if err != nil {
		return 0, err
	}
	id, err := store.LastInsertID(res)
	if err != nil {
		return 0, err
	}
	log.Infof("added folder %d at %s", id, abs)
	return id, nil
}

// RemoveFolder deletes the folder row; foreign-key cascades remove its
// files, file_tags and file_content rows (§4.5, §8 Cascade invariant).
func (m *Manager) RemoveFolder(ctx context.Context, id int64) error {
	res, err := m.db.Execute(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := store.Changes(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fverrors.New(fverrors.NotFound, "indexmanager.RemoveFolder", "no such folder")
	}
	return nil
}

// DeleteFile removes a file's row (cascading to its tags/content) and,
// optionally, the underlying bytes on disk. Folder counters are refreshed
// afterward.
func (m *Manager) DeleteFile(ctx context.Context, id int64, deleteFromDisk bool) error {
	var folderID int64
	var relPath string
	row, err := store.QueryOne[fileLoc](ctx, m.db,
		`SELECT folder_id, relative_path FROM files WHERE id = ?`,
		func(r *sql.Rows) (fileLoc, error) {
			var fl fileLoc
			err := r.Scan(&fl.folderID, &fl.relPath)
			return fl, err
		}, id)
	if err != nil {
		return err
	}
	folderID, relPath = row.folderID, row.relPath

	if deleteFromDisk {
		folderPath, ferr := store.QueryScalar[string](ctx, m.db, `SELECT path FROM folders WHERE id = ?`, folderID)
		if ferr == nil {
			full := filepath.Join(folderPath, filepath.FromSlash(relPath))
			if rmErr := os.Remove(full); rmErr != nil && !os.IsNotExist(rmErr) {
				return fverrors.Wrap(fverrors.Io, "indexmanager.DeleteFile", rmErr)
			}
		}
	}

	res, err := m.db.Execute(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := store.Changes(res); n == 0 {
		return fverrors.New(fverrors.NotFound, "indexmanager.DeleteFile", "no such file")
	}

	return m.refreshFolderCounters(ctx, folderID)
}

type fileLoc struct {
	folderID int64
	relPath  string
}

func scanInt64(r *sql.Rows) (int64, error) {
	var v int64
	err := r.Scan(&v)
	return v, err
}

// refreshFolderCounters recomputes a folder's cached file_count/total_size
// from the files table (§4.5).
func (m *Manager) refreshFolderCounters(ctx context.Context, folderID int64) error {
	type counts struct {
		n    int64
		size int64
	}
	c, err := store.QueryOne[counts](ctx, m.db,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files WHERE folder_id = ? AND is_remote = 0`,
		func(r *sql.Rows) (counts, error) {
			var c counts
			err := r.Scan(&c.n, &c.size)
			return c, err
		}, folderID)
	if err != nil {
		if fverrors.KindOf(err) == fverrors.NotFound {
			c = counts{}
		} else {
			return err
		}
	}
	_, err = m.db.Execute(ctx,
		`UPDATE folders SET file_count = ?, total_size = ? WHERE id = ?`,
		c.n, c.size, folderID)
	return err
}

func nowUnix() int64 { return time.Now().Unix() }
