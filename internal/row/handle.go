// Package row mediates reads and writes between one relational row and the
// key-value hash that caches it.
//
// A Handle is stateless apart from its key: every call is a single request
// against the hash store, or for PushToDatabase one hash read followed by
// one relational transaction. Separate Set calls are not atomic as a group;
// use SetMany when several fields must land together.
package row

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/rzpsarthak13/rowsync/internal/codec"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/schema"
)

// Updater applies a partial set of column assignments to one row in a
// single transaction, failing with core.ErrRowNotFound when the row is gone.
type Updater interface {
	Update(ctx context.Context, s *core.Schema, id any, assignments core.Record) error
}

// Option configures a Handle.
type Option func(*Handle)

// WithKeyPrefix namespaces the hash key as "<prefix>:<table>:<id>".
func WithKeyPrefix(prefix string) Option {
	return func(h *Handle) {
		h.prefix = prefix
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		h.logger = logger
	}
}

// Handle is the cache accessor for a single row.
type Handle struct {
	schema *core.Schema
	id     any
	prefix string
	key    string
	store  core.HashStore
	codecs *codec.Registry
	logger *slog.Logger
}

// New returns the handle for row id of s.
func New(s *core.Schema, id any, store core.HashStore, codecs *codec.Registry, opts ...Option) (*Handle, error) {
	if s == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	if id == nil {
		return nil, fmt.Errorf("row id cannot be nil")
	}
	if store == nil || codecs == nil {
		return nil, fmt.Errorf("store and codec registry are required")
	}

	h := &Handle{
		schema: s,
		id:     id,
		store:  store,
		codecs: codecs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.key = schema.Key(h.prefix, s.TableName, id)
	h.logger = h.logger.With("component", "row", "key", h.key)
	return h, nil
}

// Key returns the hash key, "<table>:<id>".
func (h *Handle) Key() string { return h.key }

// ID returns the row identifier.
func (h *Handle) ID() any { return h.id }

// Schema returns the table schema.
func (h *Handle) Schema() *core.Schema { return h.schema }

func (h *Handle) column(name string) (*core.Column, error) {
	col, ok := h.schema.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", core.ErrUnknownColumn, h.schema.TableName, name)
	}
	return col, nil
}

// Get reads one column. ok is false when the field is not cached. An
// explicit null yields (nil, true, nil).
func (h *Handle) Get(ctx context.Context, column string) (any, bool, error) {
	col, err := h.column(column)
	if err != nil {
		return nil, false, err
	}

	raw, ok, err := h.store.HGet(ctx, h.key, col.Name)
	if err != nil || !ok {
		return nil, false, err
	}

	payload, null := unescape(raw)
	if null {
		return nil, true, nil
	}
	v, err := h.decode(col, payload)
	if err != nil {
		return nil, false, fmt.Errorf("get %s.%s: %w", h.schema.TableName, col.Name, err)
	}
	return v, true, nil
}

// Set encodes value and writes it to the column's field. nil is accepted
// for nullable columns only.
func (h *Handle) Set(ctx context.Context, column string, value any) error {
	col, err := h.column(column)
	if err != nil {
		return err
	}
	enc, err := h.encode(col, value)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", h.schema.TableName, col.Name, err)
	}
	return h.store.HSet(ctx, h.key, map[string]string{col.Name: enc})
}

// SetMany encodes every value first and then writes them with a single
// multi-field hash write. Nothing is written if any value fails to encode.
func (h *Handle) SetMany(ctx context.Context, values map[string]any) error {
	fields := make(map[string]string, len(values))
	for name, value := range values {
		col, err := h.column(name)
		if err != nil {
			return err
		}
		enc, err := h.encode(col, value)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", h.schema.TableName, col.Name, err)
		}
		fields[col.Name] = enc
	}
	return h.store.HSet(ctx, h.key, fields)
}

// Delete evicts the whole row with no arguments, or only the named fields.
func (h *Handle) Delete(ctx context.Context, columns ...string) error {
	if len(columns) == 0 {
		if err := h.store.Del(ctx, h.key); err != nil {
			return err
		}
		h.logger.Debug("row evicted")
		return nil
	}

	fields := make([]string, 0, len(columns))
	for _, name := range columns {
		col, err := h.column(name)
		if err != nil {
			return err
		}
		fields = append(fields, col.Name)
	}
	return h.store.HDel(ctx, h.key, fields...)
}

// PushToDatabase writes the cached fields back to the relational row in one
// transaction. Fields that are absent or hold an explicit null are skipped,
// as is the identifier column.
func (h *Handle) PushToDatabase(ctx context.Context, db Updater) error {
	fields, err := h.store.HGetAll(ctx, h.key)
	if err != nil {
		return err
	}

	assignments := make(core.Record, len(fields))
	for i := range h.schema.Columns {
		col := &h.schema.Columns[i]
		if col.Name == h.schema.PrimaryKey {
			continue
		}
		raw, ok := fields[col.Name]
		if !ok {
			continue
		}
		payload, null := unescape(raw)
		if null {
			continue
		}
		v, err := h.decode(col, payload)
		if err != nil {
			return fmt.Errorf("push %s.%s: %w", h.schema.TableName, col.Name, err)
		}
		assignments[col.Name] = v
	}

	if err := db.Update(ctx, h.schema, h.id, assignments); err != nil {
		return err
	}
	h.logger.Debug("row pushed to database", "columns", len(assignments))
	return nil
}

func (h *Handle) encode(col *core.Column, value any) (string, error) {
	if value == nil {
		if !col.Nullable {
			return "", fmt.Errorf("%w: column is not nullable", core.ErrTypeMismatch)
		}
		return tombstone, nil
	}

	var (
		s   string
		err error
	)
	switch col.Kind {
	case core.KindJSON:
		var sc core.StructuralCodec
		if sc, err = h.codecs.ResolveStructural(value); err != nil {
			return "", err
		}
		s, err = sc.Encode(value)
	case core.KindEnum:
		if err = checkMember(col, value); err != nil {
			return "", err
		}
		s, err = codec.EnumName.Encode(value)
	default:
		var c codec.Codec
		if c, _, err = h.codecs.Lookup(col.Kind); err != nil {
			return "", err
		}
		s, err = c.Encode(value)
	}
	if err != nil {
		return "", err
	}
	return escape(s), nil
}

func checkMember(col *core.Column, value any) error {
	if col.Enum == nil {
		return fmt.Errorf("%w: column has no enumeration", core.ErrUnsupportedType)
	}
	if reflect.TypeOf(value) != col.Enum.GoType() {
		return fmt.Errorf("%w: %T is not %s", core.ErrTypeMismatch, value, col.Enum.EnumName())
	}
	if _, ok := col.Enum.NameOf(value); !ok {
		return fmt.Errorf("%w: %v is not a member of %s", core.ErrInvalidEnumMember, value, col.Enum.EnumName())
	}
	return nil
}

// decode applies the read policy: enum columns decode against their own
// enumeration rather than the registry placeholder, and JSON columns use
// the column's structural codec.
func (h *Handle) decode(col *core.Column, payload string) (any, error) {
	if col.Kind == core.KindJSON {
		if col.Structural == nil {
			return nil, fmt.Errorf("%w: column has no structural codec", core.ErrNoCodecRegistered)
		}
		return col.Structural.Decode(payload)
	}

	c, target, err := h.codecs.Lookup(col.Kind)
	if err != nil {
		return nil, err
	}
	if col.Kind == core.KindEnum && col.Enum != nil {
		target = col.Enum
	}
	return c.Decode(payload, target)
}
