package codec

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/shopspring/decimal"
)

// TieBreak picks among several registered structural types that a value's
// type is assignable to.
type TieBreak int

const (
	// FirstRegistered picks the earliest registration (default).
	FirstRegistered TieBreak = iota
	// LastRegistered picks the latest registration.
	LastRegistered
)

// Option configures a Registry.
type Option func(*Registry)

// WithTieBreak sets the structural assignable-match order.
func WithTieBreak(tb TieBreak) Option {
	return func(r *Registry) {
		r.tieBreak = tb
	}
}

type entry struct {
	codec     Codec
	valueType core.ValueType
}

// Registry maps column type tags to codecs, and concrete structural types to
// structural codecs.
//
// The scalar table is fixed at construction. The structural table is meant
// to be filled while schemas are loaded; registering during live traffic is
// safe but callers should not rely on a resolution racing a registration.
type Registry struct {
	scalars  map[core.Kind]entry
	tieBreak TieBreak

	mu         sync.RWMutex
	structural []core.StructuralCodec
}

// builtinKinds lists every tag with a built-in scalar entry.
var builtinKinds = []core.Kind{
	core.KindVarchar,
	core.KindText,
	core.KindInteger,
	core.KindLong,
	core.KindDouble,
	core.KindDecimal,
	core.KindBoolean,
	core.KindEnum,
	core.KindJSON,
	core.KindDate,
	core.KindDateTime,
	core.KindUUID,
	core.KindBinary,
}

// builtin is the compile-time mapping from tag to codec and value type.
func builtin(kind core.Kind) (Codec, core.ValueType, bool) {
	switch kind {
	case core.KindVarchar, core.KindText:
		return String, TypeOf[string](), true
	case core.KindInteger:
		return Integer, TypeOf[int32](), true
	case core.KindLong:
		return Long, TypeOf[int64](), true
	case core.KindDouble:
		return Double, TypeOf[float64](), true
	case core.KindDecimal:
		return Decimal, TypeOf[decimal.Decimal](), true
	case core.KindBoolean:
		return Boolean, TypeOf[bool](), true
	case core.KindEnum:
		return EnumName, AnyEnum, true
	case core.KindJSON:
		return Structural, AnyStructural, true
	case core.KindDate:
		return Date, TypeOf[time.Time](), true
	case core.KindDateTime:
		return DateTime, TypeOf[time.Time](), true
	case core.KindUUID:
		return UUID, TypeOf[uuid.UUID](), true
	case core.KindBinary:
		return Binary, TypeOf[[]byte](), true
	}
	return nil, nil, false
}

// NewRegistry builds a registry holding every built-in scalar codec.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		scalars: make(map[core.Kind]entry, len(builtinKinds)),
	}
	for _, kind := range builtinKinds {
		c, vt, _ := builtin(kind)
		r.scalars[kind] = entry{codec: c, valueType: vt}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the codec and declared value type for a tag.
func (r *Registry) Lookup(kind core.Kind) (Codec, core.ValueType, error) {
	e, ok := r.scalars[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: column type %q", core.ErrNoCodecRegistered, kind)
	}
	return e.codec, e.valueType, nil
}

// Kinds returns the tags with a registered codec.
func (r *Registry) Kinds() []core.Kind {
	out := make([]core.Kind, len(builtinKinds))
	copy(out, builtinKinds)
	return out
}

// RegisterStructural adds a structural codec. A later registration for the
// same concrete type replaces the earlier one in place.
func (r *Registry) RegisterStructural(sc core.StructuralCodec) {
	if sc == nil {
		panic("structural codec cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.structural {
		if existing.Type() == sc.Type() {
			r.structural[i] = sc
			return
		}
	}
	r.structural = append(r.structural, sc)
}

// ResolveStructural finds the structural codec for v's runtime type.
func (r *Registry) ResolveStructural(v any) (core.StructuralCodec, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: cannot resolve a structural codec for nil", core.ErrNoCodecRegistered)
	}
	return r.ResolveStructuralType(reflect.TypeOf(v))
}

// ResolveStructuralType prefers an exact type match, then a registered type
// t is assignable to, ordered by the registry's TieBreak.
func (r *Registry) ResolveStructuralType(t reflect.Type) (core.StructuralCodec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sc := range r.structural {
		if sc.Type() == t {
			return sc, nil
		}
	}

	n := len(r.structural)
	for i := 0; i < n; i++ {
		idx := i
		if r.tieBreak == LastRegistered {
			idx = n - 1 - i
		}
		if sc := r.structural[idx]; t.AssignableTo(sc.Type()) {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: structural type %s", core.ErrNoCodecRegistered, t)
}
