package store

import (
	"context"
	"database/sql"

	"github.com/familyvault/familyvault-core/internal/fverrors"
)

// Tx is a scoped transaction: it exposes the same Execute/Query surface as
// DB but over a single *sql.Tx, guaranteeing release (commit or rollback)
// on every exit path of WithTransaction.
type Tx struct {
	sqltx *sql.Tx
}

func (tx *Tx) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	metricQueriesTotal.WithLabelValues("tx_execute").Inc()
	res, err := tx.sqltx.ExecContext(ctx, query, args...)
	if err != nil {
		metricQueryErrorsTotal.WithLabelValues("tx_execute").Inc()
		return nil, fverrors.Wrap(fverrors.Database, "tx.Execute", err)
	}
	return res, nil
}

func TxQuery[T any](ctx context.Context, tx *Tx, query string, mapper Mapper[T], args ...any) ([]T, error) {
	metricQueriesTotal.WithLabelValues("tx_query").Inc()
	rows, err := tx.sqltx.QueryContext(ctx, query, args...)
	if err != nil {
		metricQueryErrorsTotal.WithLabelValues("tx_query").Inc()
		return nil, fverrors.Wrap(fverrors.Database, "tx.Query", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := mapper(rows)
		if err != nil {
			metricQueryErrorsTotal.WithLabelValues("tx_query").Inc()
			return nil, fverrors.Wrap(fverrors.Database, "tx.Query/mapper", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		metricQueryErrorsTotal.WithLabelValues("tx_query").Inc()
		return out, err
	}
	return out, nil
}

func (tx *Tx) QueryScalar(ctx context.Context, query string, dest any, args ...any) error {
	metricQueriesTotal.WithLabelValues("tx_query_scalar").Inc()
	row := tx.sqltx.QueryRowContext(ctx, query, args...)
	if err := row.Scan(dest); err != nil {
		metricQueryErrorsTotal.WithLabelValues("tx_query_scalar").Inc()
		if err == sql.ErrNoRows {
			return fverrors.New(fverrors.NotFound, "tx.QueryScalar", "no matching row")
		}
		return fverrors.Wrap(fverrors.Database, "tx.QueryScalar", err)
	}
	return nil
}

// WithTransaction runs fn inside a transaction. If fn returns a non-nil
// error, the transaction is rolled back and the error propagated;
// otherwise it is committed. The transaction is released (committed or
// rolled back) on every exit path, including a panic in fn, which is
// re-raised after rollback.
func (db *DB) WithTransaction(ctx context.Context, fn func(*Tx) error) (err error) {
	sqltx, err := db.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fverrors.Wrap(fverrors.Database, "store.WithTransaction/begin", err)
	}

	tx := &Tx{sqltx: sqltx}

	defer func() {
		if p := recover(); p != nil {
			sqltx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		sqltx.Rollback()
		return err
	}
	if err := sqltx.Commit(); err != nil {
		return fverrors.Wrap(fverrors.Database, "store.WithTransaction/commit", err)
	}
	return nil
}
