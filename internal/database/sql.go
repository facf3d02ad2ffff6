package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// connErrorFunc reports whether a driver error means the backend itself is
// unreachable, as opposed to a statement failing.
type connErrorFunc func(error) bool

// sqlDatabase implements core.Database over database/sql. Each driver file
// opens the *sql.DB and supplies its dialect and connection-error test.
type sqlDatabase struct {
	db        *sql.DB
	dialect   core.Dialect
	isConnErr connErrorFunc
	logger    *slog.Logger
	closed    atomic.Bool
}

func newSQLDatabase(db *sql.DB, dialect core.Dialect, isConnErr connErrorFunc) *sqlDatabase {
	return &sqlDatabase{
		db:        db,
		dialect:   dialect,
		isConnErr: isConnErr,
		logger:    slog.Default().With("component", "database", "dialect", string(dialect)),
	}
}

// ping verifies the connection, mapping any failure to ErrBackendUnavailable.
func (d *sqlDatabase) ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping %s: %w: %w", d.dialect, core.ErrBackendUnavailable, err)
	}
	return nil
}

// wrap annotates err and marks connection failures as ErrBackendUnavailable.
func (d *sqlDatabase) wrap(op string, err error) error {
	if isConnError(err) || (d.isConnErr != nil && d.isConnErr(err)) {
		return fmt.Errorf("%s: %w: %w", op, core.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Query executes a SELECT query and returns rows.
func (d *sqlDatabase) Query(ctx context.Context, query string, args ...any) (core.Rows, error) {
	if d.closed.Load() {
		return nil, core.ErrStoreClosed
	}
	d.logger.Debug("query", "sql", query, "args", len(args))
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, d.wrap("failed to execute query", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (d *sqlDatabase) Exec(ctx context.Context, query string, args ...any) (core.Result, error) {
	if d.closed.Load() {
		return nil, core.ErrStoreClosed
	}
	d.logger.Debug("exec", "sql", query, "args", len(args))
	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, d.wrap("failed to execute statement", err)
	}
	return result, nil
}

// BeginTx starts a new transaction.
func (d *sqlDatabase) BeginTx(ctx context.Context) (core.Transaction, error) {
	if d.closed.Load() {
		return nil, core.ErrStoreClosed
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, d.wrap("failed to begin transaction", err)
	}
	return &sqlTransaction{tx: tx, db: d}, nil
}

func (d *sqlDatabase) Dialect() core.Dialect {
	return d.dialect
}

// Close closes the database connection. Closing twice is a no-op.
func (d *sqlDatabase) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

// sqlTransaction wraps sql.Tx to implement core.Transaction.
type sqlTransaction struct {
	tx *sql.Tx
	db *sqlDatabase
}

func (t *sqlTransaction) Query(ctx context.Context, query string, args ...any) (core.Rows, error) {
	t.db.logger.Debug("tx query", "sql", query, "args", len(args))
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.db.wrap("failed to execute query", err)
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTransaction) Exec(ctx context.Context, query string, args ...any) (core.Result, error) {
	t.db.logger.Debug("tx exec", "sql", query, "args", len(args))
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, t.db.wrap("failed to execute statement", err)
	}
	return result, nil
}

func (t *sqlTransaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return t.db.wrap("failed to commit", err)
	}
	return nil
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}
