// Package store implements FamilyVault's §4.1 Store: a single SQLite
// (WAL-mode, foreign-keys-on) relational file with a linear migration
// sequence, an FTS5 full-text index keyed by file row id, and a
// reference-counted lifetime shared by every manager built on top of it.
//
// The teacher (syncthing) keeps its catalog in LevelDB; FamilyVault's spec
// calls for a relational store with FTS5-style search, so this package
// keeps the teacher's *shape* — a single shared, ref-counted handle with
// scoped transactions and parameterized, never-interpolated queries — over
// modernc.org/sqlite, the embedded-SQLite driver used throughout the rest
// of the retrieval pack's sync/file-index tools.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/familyvault/familyvault-core/internal/fverrors"
	"github.com/familyvault/familyvault-core/internal/logger"

	_ "modernc.org/sqlite"
)

var log = logger.New("store")

// DB is the shared, reference-counted handle to the index database. The
// zero value is not usable; construct with Open.
type DB struct {
	sqldb *sql.DB
	path  string

	mut      sync.Mutex
	refCount int // 1 while only the owning handle exists
	closed   bool
}

// Open applies any pending migrations and returns a ready-to-use handle
// with an initial reference count of 1 (the caller's own handle).
func Open(path string) (*DB, error) {
	dsn := dsnFor(path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fverrors.Wrap(fverrors.Database, "store.Open", err)
	}
	sqldb.SetMaxOpenConns(8)

	db := &DB{sqldb: sqldb, path: path, refCount: 1}
	if err := db.migrate(context.Background()); err != nil {
		sqldb.Close()
		return nil, fverrors.Wrap(fverrors.Database, "store.Open/migrate", err)
	}
	return db, nil
}

func dsnFor(path string) string {
	v := url.Values{}
	v.Add("_pragma", "journal_mode(WAL)")
	v.Add("_pragma", "foreign_keys(1)")
	v.Add("_pragma", "busy_timeout(5000)")
	return fmt.Sprintf("file:%s?%s", path, v.Encode())
}

func (db *DB) migrate(ctx context.Context) error {
	var current int
	row := db.sqldb.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_versions`)
	if err := row.Scan(&current); err != nil {
		// Table doesn't exist yet: this is a brand-new database.
		current = 0
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.sqldb.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.sql {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_versions(version, applied_at) VALUES (?, ?)`, m.version, time.Now().Unix()); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Infof("applied migration %d", m.version)
	}
	return nil
}

// AddRef increments the reference count; called by every manager
// constructed on top of this DB.
func (db *DB) AddRef() {
	db.mut.Lock()
	defer db.mut.Unlock()
	db.refCount++
}

// Release decrements the reference count; called by every manager's
// destructor/Close.
func (db *DB) Release() {
	db.mut.Lock()
	defer db.mut.Unlock()
	if db.refCount > 0 {
		db.refCount--
	}
}

// Close closes the underlying database iff no manager holds a reference
// beyond the caller's own handle. Otherwise it returns a Busy error and
// leaves the database open.
func (db *DB) Close() error {
	db.mut.Lock()
	defer db.mut.Unlock()
	if db.closed {
		return nil
	}
	if db.refCount > 1 {
		return fverrors.New(fverrors.Busy, "store.Close", "managers still hold a reference to this database")
	}
	db.closed = true
	return db.sqldb.Close()
}

// Execute runs a mutating statement and returns the driver Result.
func (db *DB) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	metricQueriesTotal.WithLabelValues("execute").Inc()
	res, err := db.sqldb.ExecContext(ctx, query, args...)
	if err != nil {
		metricQueryErrorsTotal.WithLabelValues("execute").Inc()
		return nil, fverrors.Wrap(fverrors.Database, "store.Execute", err)
	}
	return res, nil
}

// LastInsertID is a convenience wrapper extracting the autoincrement id
// from an Execute result.
func LastInsertID(res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fverrors.Wrap(fverrors.Database, "store.LastInsertID", err)
	}
	return id, nil
}

// Changes is a convenience wrapper extracting the affected-row count from
// an Execute result.
func Changes(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fverrors.Wrap(fverrors.Database, "store.Changes", err)
	}
	return n, nil
}

// Mapper converts one result row into a T.
type Mapper[T any] func(*sql.Rows) (T, error)

// Query runs query and maps every returned row with mapper.
func Query[T any](ctx context.Context, db *DB, query string, mapper Mapper[T], args ...any) ([]T, error) {
	metricQueriesTotal.WithLabelValues("query").Inc()
	rows, err := db.sqldb.QueryContext(ctx, query, args...)
	if err != nil {
		metricQueryErrorsTotal.WithLabelValues("query").Inc()
		return nil, fverrors.Wrap(fverrors.Database, "store.Query", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := mapper(rows)
		if err != nil {
			metricQueryErrorsTotal.WithLabelValues("query").Inc()
			return nil, fverrors.Wrap(fverrors.Database, "store.Query/mapper", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		metricQueryErrorsTotal.WithLabelValues("query").Inc()
		return nil, fverrors.Wrap(fverrors.Database, "store.Query/rows", err)
	}
	return out, nil
}

// QueryOne returns the first row, or a NotFound error if there is none.
func QueryOne[T any](ctx context.Context, db *DB, query string, mapper Mapper[T], args ...any) (T, error) {
	rows, err := Query(ctx, db, query, mapper, args...)
	var zero T
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fverrors.New(fverrors.NotFound, "store.QueryOne", "no matching row")
	}
	return rows[0], nil
}

// QueryScalar runs query and scans a single column from the first row.
func QueryScalar[T any](ctx context.Context, db *DB, query string, args ...any) (T, error) {
	metricQueriesTotal.WithLabelValues("query_scalar").Inc()
	var v T
	row := db.sqldb.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&v); err != nil {
		metricQueryErrorsTotal.WithLabelValues("query_scalar").Inc()
		if err == sql.ErrNoRows {
			return v, fverrors.New(fverrors.NotFound, "store.QueryScalar", "no matching row")
		}
		return v, fverrors.Wrap(fverrors.Database, "store.QueryScalar", err)
	}
	return v, nil
}
