package codec

import (
	"fmt"
	"reflect"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// Member is the constraint for enumeration values: comparable, with a
// String method returning the member's declared name.
type Member interface {
	comparable
	fmt.Stringer
}

// Enum is a concrete enumeration over a Go type T.
type Enum[T Member] struct {
	name   string
	names  []string
	byName map[string]T
}

// NewEnum declares an enumeration. Member names come from String and
// must be unique.
func NewEnum[T Member](name string, members ...T) *Enum[T] {
	e := &Enum[T]{
		name:   name,
		names:  make([]string, 0, len(members)),
		byName: make(map[string]T, len(members)),
	}
	for _, m := range members {
		n := m.String()
		if _, dup := e.byName[n]; dup {
			panic(fmt.Sprintf("enum %s: duplicate member name %q", name, n))
		}
		e.byName[n] = m
		e.names = append(e.names, n)
	}
	return e
}

func (e *Enum[T]) GoType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (e *Enum[T]) EnumName() string { return e.name }

func (e *Enum[T]) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

func (e *Enum[T]) ByName(name string) (any, bool) {
	m, ok := e.byName[name]
	if !ok {
		return nil, false
	}
	return m, true
}

// NameOf reports the declared name of v when v is a member of e.
func (e *Enum[T]) NameOf(v any) (string, bool) {
	m, ok := v.(T)
	if !ok {
		return "", false
	}
	n := m.String()
	if got, ok := e.byName[n]; !ok || got != m {
		return "", false
	}
	return n, true
}

// Parse is the typed form of ByName.
func (e *Enum[T]) Parse(name string) (T, error) {
	m, ok := e.byName[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q is not a member of %s", core.ErrInvalidEnumMember, name, e.name)
	}
	return m, nil
}

// EnumName is the enum-by-name codec. It encodes a member by its declared
// name and decodes against a concrete EnumType supplied as target.
var EnumName Codec = enumCodec{}

type enumCodec struct{}

func (enumCodec) Encode(v any) (string, error) {
	s, ok := v.(fmt.Stringer)
	if !ok {
		return "", mismatch("enum", v)
	}
	return s.String(), nil
}

func (enumCodec) Decode(raw string, target core.ValueType) (any, error) {
	et, ok := target.(core.EnumType)
	if !ok {
		return nil, fmt.Errorf("%w: %v is not an enumeration", core.ErrUnsupportedType, target)
	}
	m, ok := et.ByName(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a member of %s", core.ErrInvalidEnumMember, raw, et.EnumName())
	}
	return m, nil
}
