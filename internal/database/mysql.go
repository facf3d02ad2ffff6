package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// NewMySQLDatabase opens a MySQL connection pool and verifies it with a ping.
func NewMySQLDatabase(config registry.DatabaseConfig) (core.Database, error) {
	dsn := mysql.NewConfig()
	dsn.User = config.Username
	dsn.Passwd = config.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	dsn.DBName = config.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Timeout = config.ConnectionTimeout

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(db, config)

	d := newSQLDatabase(db, core.DialectMySQL, func(err error) bool {
		return errors.Is(err, mysql.ErrInvalidConn)
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()
	if err := d.ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func configurePool(db *sql.DB, config registry.DatabaseConfig) {
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
}

// MySQLDatabaseFactory creates MySQL databases.
type MySQLDatabaseFactory struct{}

func (f *MySQLDatabaseFactory) Type() string {
	return string(core.DialectMySQL)
}

// Validate validates the MySQL-specific configuration.
func (f *MySQLDatabaseFactory) Validate(config registry.DatabaseConfig) error {
	return validateNetworked(config)
}

func (f *MySQLDatabaseFactory) Create(config registry.DatabaseConfig) (core.Database, error) {
	db, err := NewMySQLDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL database: %w", err)
	}
	return db, nil
}

func validateNetworked(config registry.DatabaseConfig) error {
	if config.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535, got: %d", config.Port)
	}
	if config.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if config.Username == "" {
		return fmt.Errorf("database.username is required")
	}
	return nil
}

func init() {
	register(&MySQLDatabaseFactory{})
}
