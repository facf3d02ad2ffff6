package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// NewPostgresDatabase opens a PostgreSQL connection pool through lib/pq.
func NewPostgresDatabase(config registry.DatabaseConfig) (core.Database, error) {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	params := []string{
		"host=" + quoteDSN(config.Host),
		fmt.Sprintf("port=%d", config.Port),
		"user=" + quoteDSN(config.Username),
		"dbname=" + quoteDSN(config.Database),
		"sslmode=" + quoteDSN(sslMode),
		fmt.Sprintf("connect_timeout=%d", int(config.ConnectionTimeout.Seconds())),
	}
	if config.Password != "" {
		params = append(params, "password="+quoteDSN(config.Password))
	}

	connector, err := pq.NewConnector(strings.Join(params, " "))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := sql.OpenDB(connector)
	configurePool(db, config)

	d := newSQLDatabase(db, core.DialectPostgres, isPostgresConnError)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()
	if err := d.ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// isPostgresConnError matches SQLSTATE class 08 (connection exception) and
// 57P0x (server shutting down).
func isPostgresConnError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P0")
}

// quoteDSN quotes a keyword/value connection string value.
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// PostgresDatabaseFactory creates PostgreSQL databases.
type PostgresDatabaseFactory struct{}

func (f *PostgresDatabaseFactory) Type() string {
	return string(core.DialectPostgres)
}

// Validate validates the PostgreSQL-specific configuration.
func (f *PostgresDatabaseFactory) Validate(config registry.DatabaseConfig) error {
	if err := validateNetworked(config); err != nil {
		return err
	}
	switch config.SSLMode {
	case "", "disable", "require", "verify-ca", "verify-full":
		return nil
	}
	return fmt.Errorf("database.ssl_mode %q is not supported", config.SSLMode)
}

func (f *PostgresDatabaseFactory) Create(config registry.DatabaseConfig) (core.Database, error) {
	db, err := NewPostgresDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL database: %w", err)
	}
	return db, nil
}

func init() {
	register(&PostgresDatabaseFactory{})
}
