package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// JSON returns the structural codec for the concrete type T.
func JSON[T any]() core.StructuralCodec {
	return jsonCodec[T]{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

type jsonCodec[T any] struct {
	typ reflect.Type
}

func (c jsonCodec[T]) Type() reflect.Type { return c.typ }

func (c jsonCodec[T]) Encode(v any) (string, error) {
	if _, ok := v.(T); !ok {
		return "", fmt.Errorf("%w: structural codec for %s cannot encode %T", core.ErrTypeMismatch, c.typ, v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: marshal %s: %v", core.ErrTypeMismatch, c.typ, err)
	}
	return string(b), nil
}

func (c jsonCodec[T]) Decode(raw string) (any, error) {
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, unparsable(c.typ.String(), raw, err)
	}
	return out, nil
}

// Structural is the placeholder codec registered for the json tag. It can
// encode any JSON-marshalable value but has no schema of its own; the row
// handle always goes through a concrete StructuralCodec instead.
var Structural Codec = structuralCodec{}

type structuralCodec struct{}

func (structuralCodec) Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: marshal %T: %v", core.ErrTypeMismatch, v, err)
	}
	return string(b), nil
}

func (structuralCodec) Decode(raw string, target core.ValueType) (any, error) {
	if target == nil || target.GoType().Kind() == reflect.Interface {
		var out any
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, unparsable("json", raw, err)
		}
		return out, nil
	}
	ptr := reflect.New(target.GoType())
	if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
		return nil, unparsable("json", raw, err)
	}
	return ptr.Elem().Interface(), nil
}
