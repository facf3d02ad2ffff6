package schema

import (
	"fmt"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// SchemaValidator validates records against schema definitions.
type SchemaValidator struct {
	schema *core.Schema
	mapper *TypeMapper
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(schema *core.Schema) *SchemaValidator {
	return &SchemaValidator{
		schema: schema,
		mapper: NewTypeMapper(),
	}
}

// ValidateRecord validates a full record, as used for inserts.
// The identifier may be omitted since the store can generate it.
func (sv *SchemaValidator) ValidateRecord(record core.Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if sv.schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if err := sv.rejectUnknown(record); err != nil {
		return err
	}

	for i := range sv.schema.Columns {
		column := &sv.schema.Columns[i]
		value, exists := record[column.Name]

		if column.Name == sv.schema.PrimaryKey {
			if exists {
				if err := sv.ValidatePrimaryKey(value); err != nil {
					return err
				}
			}
			continue
		}

		if !exists || value == nil {
			if !column.Nullable {
				return fmt.Errorf("%w: column '%s' cannot be NULL", core.ErrTypeMismatch, column.Name)
			}
			continue
		}

		if err := sv.validateColumnType(column, value); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePartialRecord validates only the fields present, as used for
// updates.
func (sv *SchemaValidator) ValidatePartialRecord(record core.Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if sv.schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if err := sv.rejectUnknown(record); err != nil {
		return err
	}

	for fieldName, fieldValue := range record {
		column, _ := sv.schema.Column(fieldName)

		if fieldValue == nil {
			if !column.Nullable {
				return fmt.Errorf("%w: column '%s' cannot be NULL", core.ErrTypeMismatch, fieldName)
			}
			continue
		}

		if err := sv.validateColumnType(column, fieldValue); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePrimaryKey validates that a primary key value is valid.
func (sv *SchemaValidator) ValidatePrimaryKey(key any) error {
	if key == nil {
		return fmt.Errorf("primary key cannot be nil")
	}
	if sv.schema == nil || sv.schema.PrimaryKey == "" {
		return fmt.Errorf("schema has no primary key defined")
	}

	pkColumn, err := sv.schema.IDColumn()
	if err != nil {
		return err
	}
	return sv.validateColumnType(pkColumn, key)
}

func (sv *SchemaValidator) rejectUnknown(record core.Record) error {
	for name := range record {
		if _, ok := sv.schema.Column(name); !ok {
			return fmt.Errorf("%w: %q in table %s", core.ErrUnknownColumn, name, sv.schema.TableName)
		}
	}
	return nil
}

// validateColumnType checks the value converts to the column's driver form.
func (sv *SchemaValidator) validateColumnType(column *core.Column, value any) error {
	_, err := sv.mapper.ToDB(column, value)
	return err
}
