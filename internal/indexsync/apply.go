package indexsync

import (
	"context"
	"database/sql"

	"github.com/familyvault/familyvault-core/internal/store"
)

// localRowsSince returns every locally-owned, family-visible row with
// sync_version > since (or every such row, if full is true), along with
// the highest sync_version among them (0 if none).
func localRowsSince(ctx context.Context, db *store.DB, since int64, full bool) ([]FileDescriptor, int64, error) {
	query := `SELECT COALESCE(f.remote_id, ''), f.name, f.relative_path, f.size, f.mime_type, f.content_type,
			f.checksum, f.modified_at, f.sync_version
		FROM files f
		JOIN folders fo ON fo.id = f.folder_id
		WHERE f.is_remote = 0
			AND COALESCE(f.visibility, fo.default_visibility) = 'family'`
	args := []any{}
	if !full {
		query += ` AND f.sync_version > ?`
		args = append(args, since)
	}
	query += ` ORDER BY f.sync_version ASC`

	rows, err := store.Query[FileDescriptor](ctx, db, query, scanDescriptor, args...)
	if err != nil {
		return nil, 0, err
	}
	var maxVersion int64
	for i := range rows {
		rows[i].RemoteID = localRemoteID(rows[i])
		if rows[i].SyncVersion > maxVersion {
			maxVersion = rows[i].SyncVersion
		}
	}
	return rows, maxVersion, nil
}

// localRemoteID derives the id a peer will key this row under: our own
// rows have no remote_id (that column is only populated for rows we
// received from someone else), so we hand out the row's own identity as
// seen by peers via its relative_path, which is stable and unique per
// folder content.
func localRemoteID(d FileDescriptor) string {
	if d.RemoteID != "" {
		return d.RemoteID
	}
	return d.RelativePath
}

func scanDescriptor(r *sql.Rows) (FileDescriptor, error) {
	var d FileDescriptor
	var checksum sql.NullString
	if err := r.Scan(&d.RemoteID, &d.Name, &d.RelativePath, &d.Size, &d.MimeType, &d.ContentType,
		&checksum, &d.ModifiedAt, &d.SyncVersion); err != nil {
		return d, err
	}
	if checksum.Valid {
		d.Checksum = &checksum.String
	}
	return d, nil
}

// ApplyRows upserts rows received from sourceDeviceID: a sync_version
// strictly greater than the stored one replaces the row; equal or lesser
// is ignored (§4.14).
func ApplyRows(ctx context.Context, db *store.DB, sourceDeviceID string, rows []FileDescriptor) error {
	return db.WithTransaction(ctx, func(tx *store.Tx) error {
		for _, d := range rows {
			existing, err := store.TxQuery[int64](ctx, tx,
				`SELECT sync_version FROM files WHERE source_device_id = ? AND remote_id = ? AND is_remote = 1`,
				func(r *sql.Rows) (int64, error) {
					var v int64
					err := r.Scan(&v)
					return v, err
				}, sourceDeviceID, d.RemoteID)
			if err != nil {
				return err
			}

			if len(existing) == 0 {
				if _, err := tx.Execute(ctx, `INSERT INTO files(
						folder_id, relative_path, name, extension, size, mime_type, content_type,
						checksum, created_at, modified_at, indexed_at, source_device_id, remote_id,
						is_remote, sync_version
					) VALUES (NULL, ?, ?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
					d.RelativePath, d.Name, d.Size, d.MimeType, d.ContentType, d.Checksum,
					d.ModifiedAt, d.ModifiedAt, d.ModifiedAt, sourceDeviceID, d.RemoteID, d.SyncVersion); err != nil {
					return err
				}
				continue
			}
			if d.SyncVersion <= existing[0] {
				continue // stale update, ignored per §4.14
			}
			if _, err := tx.Execute(ctx, `UPDATE files SET
					name = ?, relative_path = ?, size = ?, mime_type = ?, content_type = ?,
					checksum = ?, modified_at = ?, sync_version = ?
				WHERE source_device_id = ? AND remote_id = ? AND is_remote = 1`,
				d.Name, d.RelativePath, d.Size, d.MimeType, d.ContentType, d.Checksum,
				d.ModifiedAt, d.SyncVersion, sourceDeviceID, d.RemoteID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyTombstone removes rows whose sender-side visibility became private
// (§4.14).
func ApplyTombstone(ctx context.Context, db *store.DB, sourceDeviceID string, remoteIDs []string) error {
	return db.WithTransaction(ctx, func(tx *store.Tx) error {
		for _, id := range remoteIDs {
			if _, err := tx.Execute(ctx,
				`DELETE FROM files WHERE source_device_id = ? AND remote_id = ? AND is_remote = 1`,
				sourceDeviceID, id); err != nil {
				return err
			}
		}
		return nil
	})
}
