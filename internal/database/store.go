package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/schema"
)

// Store provides the single-row relational operations the cache needs:
// create table, insert, lookup by id and partial update by id.
type Store struct {
	db         core.Database
	translator *schema.Translator
	logger     *slog.Logger
}

// NewStore wraps a database with statement building for its dialect.
func NewStore(db core.Database) *Store {
	return &Store{
		db:         db,
		translator: schema.NewTranslator(db.Dialect()),
		logger:     slog.Default().With("component", "store", "dialect", string(db.Dialect())),
	}
}

// CreateTable creates the table for sch if it does not exist.
func (s *Store) CreateTable(ctx context.Context, sch *core.Schema) error {
	ddl, err := s.translator.CreateTable(sch)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", sch.TableName, err)
	}
	s.logger.Info("table ready", "table", sch.TableName)
	return nil
}

// Insert writes a new row and returns its identifier. UUID identifiers
// missing from record are generated here; integer identifiers come from the
// database.
func (s *Store) Insert(ctx context.Context, sch *core.Schema, record core.Record) (any, error) {
	idCol, err := sch.IDColumn()
	if err != nil {
		return nil, err
	}

	values := make(core.Record, len(record)+1)
	for k, v := range record {
		values[k] = v
	}
	if _, ok := values[sch.PrimaryKey]; !ok && idCol.Kind == core.KindUUID {
		values[sch.PrimaryKey] = uuid.New()
	}

	_, supplied := values[sch.PrimaryKey]
	query, args, err := s.translator.Insert(sch, values, !supplied)
	if err != nil {
		return nil, err
	}

	if supplied {
		idArg, err := s.translator.IDArg(sch, values[sch.PrimaryKey])
		if err != nil {
			return nil, err
		}
		if _, err := s.db.Exec(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", sch.TableName, err)
		}
		return s.translator.Mapper().FromDB(idCol, idArg)
	}

	if s.db.Dialect() == core.DialectPostgres {
		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", sch.TableName, err)
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, fmt.Errorf("insert into %s: %w", sch.TableName, err)
			}
			return nil, fmt.Errorf("insert into %s returned no identifier", sch.TableName)
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		return id, nil
	}

	result, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", sch.TableName, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read identifier: %w", err)
	}
	return id, nil
}

// FindByID returns the row snapshot, or ErrRowNotFound.
func (s *Store) FindByID(ctx context.Context, sch *core.Schema, id any) (core.Record, error) {
	idArg, err := s.translator.IDArg(sch, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, s.translator.SelectByID(sch), idArg)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", sch.TableName, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("select from %s: %w", sch.TableName, err)
		}
		return nil, fmt.Errorf("%w: %s id %v", core.ErrRowNotFound, sch.TableName, id)
	}
	return s.translator.FromDB(rows, sch)
}

// Exists reports whether a row with the identifier exists.
func (s *Store) Exists(ctx context.Context, sch *core.Schema, id any) (bool, error) {
	idArg, err := s.translator.IDArg(sch, id)
	if err != nil {
		return false, err
	}
	rows, err := s.db.Query(ctx, s.translator.CountByID(sch), idArg)
	if err != nil {
		return false, fmt.Errorf("count in %s: %w", sch.TableName, err)
	}
	return scanCount(rows)
}

// Update applies assignments to one row in a single transaction.
func (s *Store) Update(ctx context.Context, sch *core.Schema, id any, assignments core.Record) (err error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.UpdateInTx(ctx, tx, sch, id, assignments); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateInTx applies assignments to one row inside tx. The row must exist;
// an empty assignment set only checks that.
func (s *Store) UpdateInTx(ctx context.Context, tx core.Transaction, sch *core.Schema, id any, assignments core.Record) error {
	idArg, err := s.translator.IDArg(sch, id)
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, s.translator.CountByID(sch), idArg)
	if err != nil {
		return fmt.Errorf("count in %s: %w", sch.TableName, err)
	}
	exists, err := scanCount(rows)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s id %v", core.ErrRowNotFound, sch.TableName, id)
	}

	if len(assignments) == 0 {
		return nil
	}

	query, args, err := s.translator.Update(sch, id, assignments)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", sch.TableName, err)
	}
	s.logger.Debug("row updated", "table", sch.TableName, "id", id, "columns", len(assignments))
	return nil
}

func scanCount(rows core.Rows) (bool, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, err
		}
		return false, fmt.Errorf("count query returned no rows")
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return false, fmt.Errorf("scan count: %w", err)
	}
	return n > 0, nil
}
