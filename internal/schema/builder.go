package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// TableBuilder declares a table schema column by column.
//
//	users, err := schema.NewTable("users").
//		LongID("id").
//		Varchar("name", 255).
//		Integer("age").
//		Boolean("active").
//		Build()
type TableBuilder struct {
	schema core.Schema
	errs   []error
}

// NewTable starts a schema for the named table.
func NewTable(name string) *TableBuilder {
	return &TableBuilder{schema: core.Schema{TableName: name}}
}

// UUIDID declares a UUID identifier column. Ids are generated client side.
func (b *TableBuilder) UUIDID(name string) *TableBuilder {
	return b.id(name, core.KindUUID)
}

// LongID declares an auto-increment 64-bit identifier column.
func (b *TableBuilder) LongID(name string) *TableBuilder {
	return b.id(name, core.KindLong)
}

func (b *TableBuilder) id(name string, kind core.Kind) *TableBuilder {
	if b.schema.PrimaryKey != "" {
		b.errs = append(b.errs, fmt.Errorf("table %s already has identifier %q", b.schema.TableName, b.schema.PrimaryKey))
		return b
	}
	b.schema.PrimaryKey = name
	return b.add(core.Column{Name: name, Kind: kind})
}

func (b *TableBuilder) Varchar(name string, length int) *TableBuilder {
	if length <= 0 {
		b.errs = append(b.errs, fmt.Errorf("column %s: varchar length must be positive", name))
	}
	return b.add(core.Column{Name: name, Kind: core.KindVarchar, SQLType: fmt.Sprintf("VARCHAR(%d)", length)})
}

// Column declares a scalar column from a type name, either a kind tag
// ("long", "datetime") or a DDL type ("BIGINT", "VARCHAR(64)"). A sized DDL
// type is kept as the column's SQL type. Enum and JSON columns carry a Go
// type and are declared with Enum and JSON.
func (b *TableBuilder) Column(name, typ string) *TableBuilder {
	kind, err := core.ParseKind(typ)
	sqlType := ""
	if err != nil {
		kind = NewTypeMapper().KindForSQLType(typ)
		if strings.Contains(typ, "(") {
			sqlType = strings.ToUpper(strings.TrimSpace(typ))
		}
	}
	if kind == core.KindEnum || kind == core.KindJSON {
		b.errs = append(b.errs, fmt.Errorf("column %s: %s columns need a Go type, use Enum or JSON", name, kind))
		return b
	}
	return b.add(core.Column{Name: name, Kind: kind, SQLType: sqlType})
}

func (b *TableBuilder) Text(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindText})
}

func (b *TableBuilder) Integer(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindInteger})
}

func (b *TableBuilder) Long(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindLong})
}

func (b *TableBuilder) Double(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindDouble})
}

// Decimal declares a fixed-point column with the given precision and scale.
func (b *TableBuilder) Decimal(name string, precision, scale int) *TableBuilder {
	if precision <= 0 || scale < 0 || scale > precision {
		b.errs = append(b.errs, fmt.Errorf("column %s: invalid decimal(%d,%d)", name, precision, scale))
	}
	return b.add(core.Column{Name: name, Kind: core.KindDecimal, SQLType: fmt.Sprintf("DECIMAL(%d,%d)", precision, scale)})
}

func (b *TableBuilder) Boolean(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindBoolean})
}

// Enum declares a column stored by member name.
func (b *TableBuilder) Enum(name string, enum core.EnumType) *TableBuilder {
	if enum == nil {
		b.errs = append(b.errs, fmt.Errorf("column %s: enum type is required", name))
	}
	return b.add(core.Column{Name: name, Kind: core.KindEnum, Enum: enum})
}

// JSON declares a structural column whose values are encoded by codec.
func (b *TableBuilder) JSON(name string, codec core.StructuralCodec) *TableBuilder {
	if codec == nil {
		b.errs = append(b.errs, fmt.Errorf("column %s: structural codec is required", name))
	}
	return b.add(core.Column{Name: name, Kind: core.KindJSON, Structural: codec})
}

func (b *TableBuilder) Date(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindDate})
}

func (b *TableBuilder) DateTime(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindDateTime})
}

func (b *TableBuilder) UUID(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindUUID})
}

func (b *TableBuilder) Binary(name string) *TableBuilder {
	return b.add(core.Column{Name: name, Kind: core.KindBinary})
}

// Nullable marks the most recently declared column as nullable.
func (b *TableBuilder) Nullable() *TableBuilder {
	n := len(b.schema.Columns)
	switch {
	case n == 0:
		b.errs = append(b.errs, errors.New("nullable called before any column"))
	case b.schema.Columns[n-1].Name == b.schema.PrimaryKey:
		b.errs = append(b.errs, fmt.Errorf("identifier %q cannot be nullable", b.schema.PrimaryKey))
	default:
		b.schema.Columns[n-1].Nullable = true
	}
	return b
}

func (b *TableBuilder) add(col core.Column) *TableBuilder {
	if col.Name == "" {
		b.errs = append(b.errs, errors.New("column name cannot be empty"))
		return b
	}
	if _, exists := b.schema.Column(col.Name); exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate column %q", col.Name))
		return b
	}
	b.schema.Columns = append(b.schema.Columns, col)
	return b
}

// Build returns the schema, or every declaration error joined.
func (b *TableBuilder) Build() (*core.Schema, error) {
	errs := b.errs
	if b.schema.TableName == "" {
		errs = append(errs, errors.New("table name cannot be empty"))
	}
	if b.schema.PrimaryKey == "" {
		errs = append(errs, fmt.Errorf("table %s has no identifier column", b.schema.TableName))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid schema for table %s: %w", b.schema.TableName, errors.Join(errs...))
	}

	s := b.schema
	s.Columns = append([]core.Column(nil), b.schema.Columns...)
	return &s, nil
}

// MustBuild is Build that panics on error, for package-level schema vars.
func (b *TableBuilder) MustBuild() *core.Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
