package core

import (
	"context"
)

// Dialect identifies the SQL flavour of a Database.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Database defines the relational store operations the cache relies on.
// Implementations wrap database/sql for a specific driver.
type Database interface {
	// Query executes a SELECT query and returns rows.
	Query(ctx context.Context, query string, args ...any) (Rows, error)

	// Exec executes a non-query statement and returns a result.
	Exec(ctx context.Context, query string, args ...any) (Result, error)

	// BeginTx starts a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// Dialect reports the SQL flavour for statement building.
	Dialect() Dialect

	// Close closes the database connection.
	Close() error
}

// Transaction is a scoped unit of work on a Database.
type Transaction interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	Commit() error
	Rollback() error
}

// Row is anything that can scan a single result row.
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates over a query result.
type Rows interface {
	Row
	Next() bool
	Close() error
	Err() error
}

// Result reports the outcome of an Exec.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
