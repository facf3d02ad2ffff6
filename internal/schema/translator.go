package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// Translator builds the dialect-specific SQL for single-row access and
// converts between driver rows and records.
type Translator struct {
	dialect core.Dialect
	mapper  *TypeMapper
}

// NewTranslator creates a translator for the given SQL dialect.
func NewTranslator(dialect core.Dialect) *Translator {
	return &Translator{
		dialect: dialect,
		mapper:  NewTypeMapper(),
	}
}

// Mapper returns the translator's type mapper.
func (t *Translator) Mapper() *TypeMapper {
	return t.mapper
}

// Key builds the hash key for a row: "<table>:<id>", optionally prefixed
// with "<prefix>:".
func Key(prefix, table string, id any) string {
	if prefix == "" {
		return fmt.Sprintf("%s:%v", table, id)
	}
	return fmt.Sprintf("%s:%s:%v", prefix, table, id)
}

// CreateTable returns the CREATE TABLE IF NOT EXISTS statement for s.
func (t *Translator) CreateTable(s *core.Schema) (string, error) {
	if s == nil {
		return "", fmt.Errorf("schema cannot be nil")
	}
	if _, err := s.IDColumn(); err != nil {
		return "", err
	}

	defs := make([]string, 0, len(s.Columns))
	for i := range s.Columns {
		col := &s.Columns[i]
		if col.Name == s.PrimaryKey {
			defs = append(defs, t.quote(col.Name)+" "+t.idType(col))
			continue
		}
		def := t.quote(col.Name) + " " + t.columnType(col)
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.quote(s.TableName), strings.Join(defs, ", ")), nil
}

// SelectByID returns a query selecting every column of one row, in schema
// order. It takes the id as its only argument.
func (t *Translator) SelectByID(s *core.Schema) string {
	cols := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		cols[i] = t.quote(col.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(cols, ", "), t.quote(s.TableName), t.quote(s.PrimaryKey), t.placeholder(1))
}

// CountByID returns a query counting rows with the given id.
func (t *Translator) CountByID(s *core.Schema) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s",
		t.quote(s.TableName), t.quote(s.PrimaryKey), t.placeholder(1))
}

// Insert converts a record into an INSERT statement and arguments. Columns
// absent from the record are left to their defaults. When returning is
// true and the dialect supports it, the statement returns the identifier.
func (t *Translator) Insert(s *core.Schema, record core.Record, returning bool) (string, []any, error) {
	if record == nil {
		return "", nil, fmt.Errorf("record cannot be nil")
	}

	validator := NewSchemaValidator(s)
	if err := validator.ValidateRecord(record); err != nil {
		return "", nil, fmt.Errorf("validation failed: %w", err)
	}

	columns := make([]string, 0, len(s.Columns))
	placeholders := make([]string, 0, len(s.Columns))
	args := make([]any, 0, len(s.Columns))

	for i := range s.Columns {
		col := &s.Columns[i]
		value, exists := record[col.Name]
		if !exists {
			continue
		}

		converted, err := t.mapper.ToDB(col, value)
		if err != nil {
			return "", nil, err
		}
		columns = append(columns, t.quote(col.Name))
		placeholders = append(placeholders, t.placeholder(len(args)+1))
		args = append(args, converted)
	}

	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", t.quote(s.TableName))
		if t.dialect == core.DialectMySQL {
			query = fmt.Sprintf("INSERT INTO %s () VALUES ()", t.quote(s.TableName))
		}
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			t.quote(s.TableName), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	}

	if returning && t.dialect == core.DialectPostgres {
		query += " RETURNING " + t.quote(s.PrimaryKey)
	}
	return query, args, nil
}

// Update converts a partial set of assignments into an UPDATE of one row by
// id. Assignments are emitted in schema order so the statement is stable.
func (t *Translator) Update(s *core.Schema, id any, assignments core.Record) (string, []any, error) {
	if len(assignments) == 0 {
		return "", nil, fmt.Errorf("updates cannot be empty")
	}

	validator := NewSchemaValidator(s)
	if err := validator.ValidatePartialRecord(assignments); err != nil {
		return "", nil, fmt.Errorf("validation failed: %w", err)
	}
	if _, exists := assignments[s.PrimaryKey]; exists {
		return "", nil, fmt.Errorf("cannot update primary key '%s'", s.PrimaryKey)
	}

	setParts := make([]string, 0, len(assignments))
	args := make([]any, 0, len(assignments)+1)
	for i := range s.Columns {
		col := &s.Columns[i]
		value, exists := assignments[col.Name]
		if !exists {
			continue
		}
		converted, err := t.mapper.ToDB(col, value)
		if err != nil {
			return "", nil, err
		}
		args = append(args, converted)
		setParts = append(setParts, fmt.Sprintf("%s = %s", t.quote(col.Name), t.placeholder(len(args))))
	}

	pkValue, err := t.IDArg(s, id)
	if err != nil {
		return "", nil, err
	}
	args = append(args, pkValue)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		t.quote(s.TableName), strings.Join(setParts, ", "), t.quote(s.PrimaryKey), t.placeholder(len(args)))
	return query, args, nil
}

// IDArg converts an identifier to its driver argument form.
func (t *Translator) IDArg(s *core.Schema, id any) (any, error) {
	validator := NewSchemaValidator(s)
	if err := validator.ValidatePrimaryKey(id); err != nil {
		return nil, fmt.Errorf("invalid primary key: %w", err)
	}
	col, _ := s.IDColumn()
	return t.mapper.ToDB(col, id)
}

// FromDB scans one row selected by SelectByID into a record.
func (t *Translator) FromDB(row core.Row, s *core.Schema) (core.Record, error) {
	if row == nil {
		return nil, fmt.Errorf("row cannot be nil")
	}

	values := make([]any, len(s.Columns))
	valuePtrs := make([]any, len(s.Columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := row.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	record := make(core.Record, len(s.Columns))
	for i := range s.Columns {
		col := &s.Columns[i]
		converted, err := t.mapper.FromDB(col, values[i])
		if err != nil {
			return nil, err
		}
		record[col.Name] = converted
	}
	return record, nil
}

func (t *Translator) quote(ident string) string {
	if t.dialect == core.DialectMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (t *Translator) placeholder(n int) string {
	if t.dialect == core.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (t *Translator) idType(col *core.Column) string {
	if col.Kind == core.KindUUID {
		switch t.dialect {
		case core.DialectPostgres:
			return "UUID PRIMARY KEY"
		case core.DialectMySQL:
			return "CHAR(36) PRIMARY KEY"
		default:
			return "TEXT PRIMARY KEY"
		}
	}
	switch t.dialect {
	case core.DialectPostgres:
		return "BIGSERIAL PRIMARY KEY"
	case core.DialectMySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func (t *Translator) columnType(col *core.Column) string {
	if col.SQLType != "" {
		return col.SQLType
	}
	switch col.Kind {
	case core.KindVarchar:
		return "VARCHAR(255)"
	case core.KindText:
		return "TEXT"
	case core.KindInteger:
		return "INTEGER"
	case core.KindLong:
		return "BIGINT"
	case core.KindDouble:
		return t.pick("DOUBLE", "DOUBLE PRECISION", "REAL")
	case core.KindDecimal:
		return "DECIMAL(19,4)"
	case core.KindBoolean:
		return "BOOLEAN"
	case core.KindEnum:
		return "VARCHAR(64)"
	case core.KindJSON:
		return t.pick("JSON", "JSONB", "TEXT")
	case core.KindDate:
		return "DATE"
	case core.KindDateTime:
		return t.pick("DATETIME(6)", "TIMESTAMPTZ", "DATETIME")
	case core.KindUUID:
		return t.pick("CHAR(36)", "UUID", "CHAR(36)")
	case core.KindBinary:
		return t.pick("LONGBLOB", "BYTEA", "BLOB")
	default:
		return "TEXT"
	}
}

func (t *Translator) pick(mysql, postgres, sqlite string) string {
	switch t.dialect {
	case core.DialectMySQL:
		return mysql
	case core.DialectPostgres:
		return postgres
	default:
		return sqlite
	}
}
