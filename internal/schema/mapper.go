package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/shopspring/decimal"
)

// TypeMapper converts column values between their Go form and what the SQL
// drivers accept and return.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// KindForSQLType maps a DDL type string to the closest column kind.
// Unknown types map to text.
func (tm *TypeMapper) KindForSQLType(sqlType string) core.Kind {
	upper := strings.ToUpper(strings.TrimSpace(sqlType))
	if upper == "TINYINT(1)" {
		return core.KindBoolean
	}

	// VARCHAR(255) -> VARCHAR
	baseType := upper
	if idx := strings.Index(upper, "("); idx > 0 {
		baseType = strings.TrimSpace(upper[:idx])
	}

	switch baseType {
	case "INT", "INTEGER", "MEDIUMINT", "SMALLINT", "TINYINT":
		return core.KindInteger
	case "BIGINT", "BIGSERIAL", "SERIAL":
		return core.KindLong
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "REAL":
		return core.KindDouble
	case "DECIMAL", "NUMERIC":
		return core.KindDecimal
	case "VARCHAR", "CHAR", "CHARACTER VARYING":
		return core.KindVarchar
	case "TEXT", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT":
		return core.KindText
	case "BINARY", "VARBINARY", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "BYTEA":
		return core.KindBinary
	case "DATE":
		return core.KindDate
	case "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return core.KindDateTime
	case "BOOLEAN", "BOOL":
		return core.KindBoolean
	case "JSON", "JSONB":
		return core.KindJSON
	case "UUID":
		return core.KindUUID
	default:
		return core.KindText
	}
}

// ToDB converts a column value to a driver argument. Nil stays nil.
func (tm *TypeMapper) ToDB(col *core.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch col.Kind {
	case core.KindVarchar, core.KindText:
		s, ok := value.(string)
		if !ok {
			return nil, tm.mismatch(col, value)
		}
		out = s
	case core.KindInteger:
		var n int64
		n, err = tm.toInt64(value)
		if err == nil && (n < math.MinInt32 || n > math.MaxInt32) {
			err = fmt.Errorf("%d overflows integer", n)
		}
		out = n
	case core.KindLong:
		out, err = tm.toInt64(value)
	case core.KindDouble:
		out, err = tm.toFloat64(value)
	case core.KindDecimal:
		var d decimal.Decimal
		d, err = tm.toDecimal(value)
		out = d.String()
	case core.KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, tm.mismatch(col, value)
		}
		out = b
	case core.KindEnum:
		out, err = tm.enumName(col, value)
	case core.KindJSON:
		out, err = tm.toJSON(col, value)
	case core.KindDate:
		t, ok := value.(time.Time)
		if !ok {
			return nil, tm.mismatch(col, value)
		}
		out = t.Format(dateLayout)
	case core.KindDateTime:
		t, ok := value.(time.Time)
		if !ok {
			return nil, tm.mismatch(col, value)
		}
		out = t.UTC()
	case core.KindUUID:
		var id uuid.UUID
		id, err = tm.toUUID(value)
		out = id.String()
	case core.KindBinary:
		b, ok := value.([]byte)
		if !ok {
			return nil, tm.mismatch(col, value)
		}
		out = b
	default:
		return nil, fmt.Errorf("%w: column %s has kind %q", core.ErrNoCodecRegistered, col.Name, col.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: column %s: %v", core.ErrTypeMismatch, col.Name, err)
	}
	return out, nil
}

// FromDB converts a scanned driver value into the column's Go type.
// Drivers disagree on representations (MySQL text protocol returns []byte
// for most types, SQLite returns strings for dates it cannot parse), so every
// kind accepts its textual form too.
func (tm *TypeMapper) FromDB(col *core.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	// Handle sql.Null* types
	if valuer, ok := value.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
		value = val
	}

	var (
		out any
		err error
	)
	switch col.Kind {
	case core.KindVarchar, core.KindText:
		out, err = tm.toString(value)
	case core.KindInteger:
		var n int64
		n, err = tm.toInt64(value)
		if err == nil && (n < math.MinInt32 || n > math.MaxInt32) {
			err = fmt.Errorf("%d overflows integer", n)
		}
		out = int32(n)
	case core.KindLong:
		out, err = tm.toInt64(value)
	case core.KindDouble:
		out, err = tm.toFloat64(value)
	case core.KindDecimal:
		out, err = tm.toDecimal(value)
	case core.KindBoolean:
		out, err = tm.toBool(value)
	case core.KindEnum:
		var name string
		if name, err = tm.toString(value); err != nil {
			break
		}
		if col.Enum == nil {
			return nil, fmt.Errorf("%w: column %s has no enumeration", core.ErrUnsupportedType, col.Name)
		}
		m, ok := col.Enum.ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a member of %s", core.ErrInvalidEnumMember, name, col.Enum.EnumName())
		}
		out = m
	case core.KindJSON:
		var raw string
		if raw, err = tm.toString(value); err != nil {
			break
		}
		if col.Structural != nil {
			return col.Structural.Decode(raw)
		}
		var loose any
		err = json.Unmarshal([]byte(raw), &loose)
		out = loose
	case core.KindDate:
		var t time.Time
		t, err = tm.toTime(value)
		out = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case core.KindDateTime:
		var t time.Time
		t, err = tm.toTime(value)
		out = t.UTC()
	case core.KindUUID:
		out, err = tm.toUUID(value)
	case core.KindBinary:
		b, ok := value.([]byte)
		if !ok {
			var s string
			if s, err = tm.toString(value); err == nil {
				b = []byte(s)
			}
		}
		out = append([]byte{}, b...)
	default:
		return nil, fmt.Errorf("%w: column %s has kind %q", core.ErrNoCodecRegistered, col.Name, col.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: column %s: %v", core.ErrTypeMismatch, col.Name, err)
	}
	return out, nil
}

const dateLayout = "2006-01-02"

// timeFormats are tried in order when a driver hands back a textual time.
var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	dateLayout,
}

func (tm *TypeMapper) mismatch(col *core.Column, value any) error {
	return fmt.Errorf("%w: column %s (%s) cannot hold %T", core.ErrTypeMismatch, col.Name, col.Kind, value)
}

func (tm *TypeMapper) enumName(col *core.Column, value any) (string, error) {
	if col.Enum != nil {
		name, ok := col.Enum.NameOf(value)
		if !ok {
			return "", fmt.Errorf("%v (%T) is not a member of %s", value, value, col.Enum.EnumName())
		}
		return name, nil
	}
	s, ok := value.(fmt.Stringer)
	if !ok {
		return "", fmt.Errorf("cannot convert %T to an enum name", value)
	}
	return s.String(), nil
}

func (tm *TypeMapper) toJSON(col *core.Column, value any) (string, error) {
	if col.Structural != nil {
		return col.Structural.Encode(value)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("cannot marshal %T to JSON: %w", value, err)
	}
	return string(b), nil
}

func (tm *TypeMapper) toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case []byte:
		return tm.toInt64(string(v))
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to int64: %w", err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func (tm *TypeMapper) toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return tm.toFloat64(string(v))
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to float64: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

func (tm *TypeMapper) toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Decimal{}, fmt.Errorf("nil decimal")
		}
		return *v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case []byte:
		return tm.toDecimal(string(v))
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("cannot convert string to decimal: %w", err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot convert %T to decimal", value)
	}
}

func (tm *TypeMapper) toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

func (tm *TypeMapper) toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return tm.toTime(string(v))
	case string:
		for _, format := range timeFormats {
			if t, err := time.ParseInLocation(format, v, time.UTC); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

func (tm *TypeMapper) toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		// MySQL BOOLEAN is TINYINT(1)
		return v != 0, nil
	case []byte:
		return tm.toBool(string(v))
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string to bool: %w", err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func (tm *TypeMapper) toUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("cannot convert %T to uuid", value)
	}
}
