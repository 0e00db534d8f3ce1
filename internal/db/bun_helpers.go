package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// ErrTxAborted reports that a transaction can no longer be used, typically
// because rolling back to a savepoint failed or the connection went away.
var ErrTxAborted = errors.New("store session is no longer usable")

// execRawProvider is a small interface used to accept either *bun.DB or bun.Tx
// since both expose NewRaw(...) returning *bun.RawQuery.
type execRawProvider interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
}

// ExecRaw executes a raw SQL statement using the provided Bun DB or transaction.
func ExecRaw(ctx context.Context, exec execRawProvider, query string, args ...interface{}) (sql.Result, error) {
	return exec.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto runs a raw query and scans the result into dest using Bun's RawQuery.Scan.
func QueryRawInto(ctx context.Context, exec execRawProvider, dest interface{}, query string, args ...interface{}) error {
	return exec.NewRaw(query, args...).Scan(ctx, dest)
}

// BeginTx starts a transaction on bdb.
func BeginTx(ctx context.Context, bdb *bun.DB, opts *sql.TxOptions) (bun.Tx, error) {
	return bdb.BeginTx(ctx, opts)
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise (or when fn panics).
func WithTx(ctx context.Context, bdb *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) (err error) {
	tx, err := BeginTx(ctx, bdb, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			dbLogf("db: rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

var savepointSeq atomic.Uint64

// WithSavepoint runs fn inside a savepoint of tx. When fn fails the work since
// the savepoint is undone and fn's error is returned; the outer transaction
// stays usable. If the savepoint itself cannot be rolled back the error
// wraps ErrTxAborted.
func WithSavepoint(ctx context.Context, tx bun.Tx, fn func(ctx context.Context) error) error {
	name := fmt.Sprintf("rl_sp_%d", savepointSeq.Add(1))
	if _, err := ExecRaw(ctx, tx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("%w: savepoint: %v", ErrTxAborted, err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := ExecRaw(ctx, tx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w: %v (rollback to savepoint: %v)", ErrTxAborted, err, rbErr)
		}
		_, _ = ExecRaw(ctx, tx, "RELEASE SAVEPOINT "+name)
		return err
	}
	if _, err := ExecRaw(ctx, tx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("%w: release savepoint: %v", ErrTxAborted, err)
	}
	return nil
}

// Ping issues a trivial query on db, which may be a transaction. Errors wrap
// ErrTxAborted.
func Ping(ctx context.Context, db bun.IDB) error {
	var one int
	if err := db.NewRaw("SELECT 1").Scan(ctx, &one); err != nil {
		return fmt.Errorf("%w: %v", ErrTxAborted, err)
	}
	return nil
}

// ResetSequence moves a PostgreSQL serial sequence past the current maximum
// of column. Rows inserted with explicit ids do not advance the sequence, so
// this runs after bulk loads. Other dialects track auto-increment themselves
// and the call is a no-op.
func ResetSequence(ctx context.Context, db bun.IDB, table, column string) error {
	if db.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := ExecRaw(ctx, db,
		"SELECT setval(pg_get_serial_sequence(?, ?), COALESCE((SELECT MAX(?) FROM ?), 0) + 1, false)",
		table, column, bun.Ident(column), bun.Ident(table))
	return err
}
