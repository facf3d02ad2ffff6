package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/mattn/go-sqlite3"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// NewSQLiteDatabase opens a SQLite database file. The pool is pinned to one
// connection since SQLite serialises writers anyway and ":memory:" databases
// are per connection.
func NewSQLiteDatabase(path string) (core.Database, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")

	db, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	d := newSQLDatabase(db, core.DialectSQLite, func(err error) bool {
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		return sqliteErr.Code == sqlite3.ErrCantOpen || sqliteErr.Code == sqlite3.ErrNotADB
	})

	if err := d.ping(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// SQLiteDatabaseFactory creates SQLite databases.
type SQLiteDatabaseFactory struct{}

func (f *SQLiteDatabaseFactory) Type() string {
	return string(core.DialectSQLite)
}

// Validate validates the SQLite-specific configuration.
func (f *SQLiteDatabaseFactory) Validate(config registry.DatabaseConfig) error {
	if config.Path == "" {
		return fmt.Errorf("database.path is required for sqlite3")
	}
	return nil
}

func (f *SQLiteDatabaseFactory) Create(config registry.DatabaseConfig) (core.Database, error) {
	db, err := NewSQLiteDatabase(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite database: %w", err)
	}
	return db, nil
}

func init() {
	register(&SQLiteDatabaseFactory{})
}
