package store

// migration is one linear, numbered schema step. Migrations never mutate
// once released; a new schema change is always a new, higher-numbered
// migration appended to this slice (mirrors the teacher's own db
// versioning posture in lib/db, applied here over SQLite instead of
// LevelDB because the spec requires a relational store with FTS5, not a
// key/value store).
type migration struct {
	version int
	sql     []string
}

var migrations = []migration{
	{
		version: 1,
		sql: []string{
			`CREATE TABLE schema_versions (
				version    INTEGER PRIMARY KEY,
				applied_at INTEGER NOT NULL
			)`,
			`CREATE TABLE folders (
				id                 INTEGER PRIMARY KEY AUTOINCREMENT,
				path               TEXT NOT NULL UNIQUE,
				name               TEXT NOT NULL,
				enabled            INTEGER NOT NULL DEFAULT 1,
				default_visibility TEXT NOT NULL DEFAULT 'private',
				last_scan_at       INTEGER,
				file_count         INTEGER NOT NULL DEFAULT 0,
				total_size         INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE files (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				folder_id        INTEGER REFERENCES folders(id) ON DELETE CASCADE,
				relative_path    TEXT,
				name             TEXT NOT NULL,
				extension        TEXT NOT NULL DEFAULT '',
				size             INTEGER NOT NULL DEFAULT 0,
				mime_type        TEXT NOT NULL DEFAULT '',
				content_type     TEXT NOT NULL DEFAULT 'unknown',
				checksum         TEXT,
				created_at       INTEGER NOT NULL,
				modified_at      INTEGER NOT NULL,
				indexed_at       INTEGER NOT NULL,
				visibility       TEXT,
				source_device_id TEXT,
				remote_id        TEXT,
				is_remote        INTEGER NOT NULL DEFAULT 0,
				sync_version     INTEGER NOT NULL DEFAULT 0,
				last_modified_by TEXT
			)`,
			`CREATE UNIQUE INDEX idx_files_folder_path ON files(folder_id, relative_path)
				WHERE is_remote = 0`,
			`CREATE UNIQUE INDEX idx_files_remote_origin ON files(source_device_id, remote_id)
				WHERE is_remote = 1`,
			`CREATE INDEX idx_files_checksum ON files(checksum)`,
			`CREATE INDEX idx_files_content_type ON files(content_type)`,
			`CREATE INDEX idx_files_modified_at ON files(modified_at)`,
			`CREATE TABLE tags (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT NOT NULL UNIQUE,
				source     TEXT NOT NULL DEFAULT 'user',
				file_count INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE file_tags (
				file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
				tag_id  INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				PRIMARY KEY (file_id, tag_id)
			)`,
			`CREATE TABLE file_content (
				file_id      INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
				extracted_at INTEGER NOT NULL,
				method       TEXT NOT NULL,
				language     TEXT
			)`,
			`CREATE VIRTUAL TABLE files_fts USING fts5(name, text, tokenize = 'porter unicode61')`,
		},
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].version
}
