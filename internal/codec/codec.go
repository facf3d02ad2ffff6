// Package codec converts typed column values to and from the string form
// stored in key-value hash fields.
//
// Scalar kinds are a closed set resolved through a Registry by type tag.
// Structural (JSON) values are open-ended: each concrete Go type gets its own
// StructuralCodec, registered when the column is declared and resolved per
// value at write time.
package codec

import (
	"fmt"
	"reflect"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// Codec converts one value kind to and from its string representation.
// Codecs are stateless and safe for concurrent use.
type Codec interface {
	// Encode returns the string form of v.
	// Fails with ErrTypeMismatch when v has the wrong type.
	Encode(v any) (string, error)

	// Decode parses raw into a value of the target type.
	// Only the enum and structural codecs look at target.
	Decode(raw string, target core.ValueType) (any, error)
}

// Re-exported so callers of this package need not import core.
var (
	ErrNoCodecRegistered = core.ErrNoCodecRegistered
	ErrTypeMismatch      = core.ErrTypeMismatch
	ErrInvalidEnumMember = core.ErrInvalidEnumMember
	ErrUnsupportedType   = core.ErrUnsupportedType
)

type goType struct {
	t reflect.Type
}

func (g goType) GoType() reflect.Type { return g.t }

func (g goType) String() string { return g.t.String() }

// TypeOf returns the ValueType of T.
func TypeOf[T any]() core.ValueType {
	return goType{t: reflect.TypeOf((*T)(nil)).Elem()}
}

var (
	// AnyEnum is the placeholder value type registered for enum columns.
	// It is not an EnumType, so decoding against it fails; callers must
	// substitute the column's concrete enumeration.
	AnyEnum core.ValueType = TypeOf[fmt.Stringer]()

	// AnyStructural is the placeholder value type registered for JSON columns.
	AnyStructural core.ValueType = TypeOf[any]()
)

func mismatch(codec string, v any) error {
	return fmt.Errorf("%w: %s codec cannot encode %T", core.ErrTypeMismatch, codec, v)
}

func unparsable(codec, raw string, err error) error {
	return fmt.Errorf("%w: %s codec cannot parse %q: %v", core.ErrTypeMismatch, codec, raw, err)
}
