package indexmanager

import (
	"context"
	"database/sql"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/scanner"
	"github.com/familyvault/familyvault-core/internal/store"
)

// ScanFolder runs Scanner over folder id, upserting every emitted file and
// then tombstoning (deleting) any row not refreshed by this pass — i.e.
// any file now absent on disk (§4.5, §8 Tombstoning invariant). A
// cancelled scan does not tombstone: rows upserted before the
// cancellation keep their new values, and no row is deleted.
func (m *Manager) ScanFolder(ctx context.Context, id int64, onProgress func(ScanProgress)) error {
	m.cancel.Reset()

	folder, err := m.loadFolder(ctx, id)
	if err != nil {
		return err
	}

	scanStart := nowUnix()

	w := &scanner.Walker{Root: folder.Path, Cancel: m.cancel}
	total, err := w.Count(ctx)
	if err == scanner.ErrCancelled {
		return nil
	}
	if err != nil {
		return err
	}

	// indexed_at has one-second resolution: age rows refreshed earlier in
	// this same second so only this pass's upserts reach scanStart.
	if _, err := m.db.Execute(ctx,
		`UPDATE files SET indexed_at = ? WHERE folder_id = ? AND is_remote = 0 AND indexed_at >= ?`,
		scanStart-1, id, scanStart); err != nil {
		return err
	}

	scanned := 0
	walkErr := w.Walk(ctx, func(sf scanner.ScannedFile) {
		if upErr := m.upsertFile(ctx, id, sf); upErr != nil {
			log.Warnf("upsert %s/%s: %v", folder.Path, sf.RelativePath, upErr)
			return
		}
		scanned++
		if onProgress != nil {
			onProgress(ScanProgress{FolderID: id, FilesScanned: scanned, FilesTotal: total, CurrentFile: sf.RelativePath})
		}
		if m.bus != nil {
			m.bus.Log(events.ScanProgress, ScanProgress{FolderID: id, FilesScanned: scanned, FilesTotal: total, CurrentFile: sf.RelativePath})
		}
	})

	if walkErr == scanner.ErrCancelled {
		return nil
	}
	if walkErr != nil {
		return walkErr
	}

	if _, err := m.db.Execute(ctx,
		`DELETE FROM files WHERE folder_id = ? AND is_remote = 0 AND indexed_at < ?`,
		id, scanStart); err != nil {
		return err
	}

	if err := m.refreshFolderCounters(ctx, id); err != nil {
		return err
	}
	if _, err := m.db.Execute(ctx, `UPDATE folders SET last_scan_at = ? WHERE id = ?`, nowUnix(), id); err != nil {
		return err
	}

	if onProgress != nil {
		onProgress(ScanProgress{FolderID: id, FilesScanned: scanned, FilesTotal: total, Done: true})
	}
	if m.bus != nil {
		m.bus.Log(events.ScanCompleted, ScanProgress{FolderID: id, FilesScanned: scanned, FilesTotal: total, Done: true})
	}
	return nil
}

// ScanAll iterates every enabled folder sequentially (§4.5).
func (m *Manager) ScanAll(ctx context.Context, onProgress func(ScanProgress)) error {
	ids, err := store.Query[int64](ctx, m.db, `SELECT id FROM folders WHERE enabled = 1`, scanInt64)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if m.cancel.Cancelled() {
			return nil
		}
		if err := m.ScanFolder(ctx, id, onProgress); err != nil {
			return err
		}
	}
	return nil
}

// StopScan cooperatively requests the in-flight scan to stop at its next
// safe point (§4.5). It returns immediately.
func (m *Manager) StopScan() {
	m.cancel.Cancel()
}

func (m *Manager) loadFolder(ctx context.Context, id int64) (Folder, error) {
	return store.QueryOne[Folder](ctx, m.db,
		`SELECT id, path, name, enabled, default_visibility FROM folders WHERE id = ?`,
		func(r *sql.Rows) (Folder, error) {
			var f Folder
			var enabled int
			var vis string
			if err := r.Scan(&f.ID, &f.Path, &f.Name, &enabled, &vis); err != nil {
				return f, err
			}
			f.Enabled = enabled != 0
			f.DefaultVisibility = Visibility(vis)
			return f, nil
		}, id)
}

// upsertFile inserts or refreshes a single local file row, per §3's
// "(folder_id, relative_path) is unique; re-scans upsert and refresh
// indexed_at" invariant, and §3's "a checksum, once computed, never
// mutates unless modified_at changes" rule.
func (m *Manager) upsertFile(ctx context.Context, folderID int64, sf scanner.ScannedFile) error {
	return m.db.WithTransaction(ctx, func(tx *store.Tx) error {
		type existingRow struct {
			id         int64
			modifiedAt int64
			checksum   sql.NullString
		}
		rows, err := store.TxQuery[existingRow](ctx, tx,
			`SELECT id, modified_at, checksum FROM files WHERE folder_id = ? AND relative_path = ? AND is_remote = 0`,
			func(r *sql.Rows) (existingRow, error) {
				var e existingRow
				err := r.Scan(&e.id, &e.modifiedAt, &e.checksum)
				return e, err
			}, folderID, sf.RelativePath)
		if err != nil {
			return err
		}

		now := nowUnix()

		if len(rows) == 0 {
			_, err := tx.Execute(ctx,
				`INSERT INTO files(folder_id, relative_path, name, extension, size, mime_type, content_type,
					created_at, modified_at, indexed_at, is_remote, sync_version)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
				folderID, sf.RelativePath, sf.Name, sf.Extension, sf.Size, sf.MimeType, string(sf.ContentType),
				sf.ModifiedAt, sf.ModifiedAt, now)
			return err
		}

		existing := rows[0]
		checksumClear := ""
		if existing.modifiedAt != sf.ModifiedAt {
			// Content may have changed: invalidate any cached checksum so
			// DuplicateFinder/Cache logic recomputes it.
			checksumClear = ", checksum = NULL"
		}
		_, err = tx.Execute(ctx,
			`UPDATE files SET name = ?, extension = ?, size = ?, mime_type = ?, content_type = ?,
				modified_at = ?, indexed_at = ?`+checksumClear+` WHERE id = ?`,
			sf.Name, sf.Extension, sf.Size, sf.MimeType, string(sf.ContentType), sf.ModifiedAt, now, existing.id)
		return err
	})
}
