package core

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind is a column's declared storage/semantic type tag.
// It is fixed when the column is declared.
type Kind string

const (
	KindVarchar  Kind = "varchar"
	KindText     Kind = "text"
	KindInteger  Kind = "integer"
	KindLong     Kind = "long"
	KindDouble   Kind = "double"
	KindDecimal  Kind = "decimal"
	KindBoolean  Kind = "boolean"
	KindEnum     Kind = "enum"
	KindJSON     Kind = "json"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindUUID     Kind = "uuid"
	KindBinary   Kind = "binary"
)

var kinds = []Kind{
	KindVarchar, KindText, KindInteger, KindLong, KindDouble, KindDecimal, KindBoolean,
	KindEnum, KindJSON, KindDate, KindDateTime, KindUUID, KindBinary,
}

// ParseKind parses a type tag name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: column type %q", ErrNoCodecRegistered, s)
}

// ValueType names the Go type a decoded value takes.
type ValueType interface {
	GoType() reflect.Type
}

// EnumType is a concrete enumeration whose members are addressed by name.
type EnumType interface {
	ValueType

	// EnumName is the enumeration's declared name.
	EnumName() string

	// Names lists member names in declaration order.
	Names() []string

	// ByName returns the member with the given name.
	ByName(name string) (any, bool)

	// NameOf returns the declared name of a member value.
	NameOf(v any) (string, bool)
}

// StructuralCodec encodes one concrete structural (JSON) value type.
// Unlike scalar codecs it is bound to its Go type up front.
type StructuralCodec interface {
	// Type is the concrete Go type this codec produces.
	Type() reflect.Type

	Encode(v any) (string, error)
	Decode(raw string) (any, error)
}

// Schema represents the structure of a database table.
type Schema struct {
	// TableName is the name of the table.
	TableName string

	// PrimaryKey is the name of the identifier column.
	PrimaryKey string

	// Columns contains all column definitions for the table, identifier included.
	Columns []Column
}

// Column represents a single column in a database table.
type Column struct {
	// Name is the column name. It is also the hash field name in the KV store.
	Name string

	// Kind is the declared type tag.
	Kind Kind

	// SQLType is the DDL type (e.g., "VARCHAR(255)"). Empty means the
	// dialect default for Kind.
	SQLType string

	// Nullable indicates whether the column can contain NULL values.
	Nullable bool

	// Enum is the concrete enumeration for KindEnum columns.
	Enum EnumType

	// Structural is the column's own codec for KindJSON columns.
	Structural StructuralCodec
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// IDColumn returns the identifier column.
func (s *Schema) IDColumn() (*Column, error) {
	col, ok := s.Column(s.PrimaryKey)
	if !ok {
		return nil, fmt.Errorf("%w: primary key %q not found in table %s", ErrUnknownColumn, s.PrimaryKey, s.TableName)
	}
	return col, nil
}

// ColumnNames returns column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Record is a column-name-addressable row snapshot.
type Record map[string]any
