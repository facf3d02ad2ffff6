package row

import (
	"context"
	"fmt"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// GetAs reads a column and asserts its decoded type. A missing field or an
// explicit null returns the zero T; ok still tells the two apart.
func GetAs[T any](ctx context.Context, h *Handle, column string) (value T, ok bool, err error) {
	v, ok, err := h.Get(ctx, column)
	if err != nil || v == nil {
		return value, ok, err
	}
	value, isT := v.(T)
	if !isT {
		return value, false, fmt.Errorf("%w: %s.%s holds %T, not %T", core.ErrTypeMismatch, h.schema.TableName, column, v, value)
	}
	return value, true, nil
}

// Field is a typed accessor for one column of one row.
type Field[T any] struct {
	handle *Handle
	column string
	def    T
}

// NewField binds column of h. def is returned by Get when the field is
// absent or null.
func NewField[T any](h *Handle, column string, def T) (Field[T], error) {
	if _, err := h.column(column); err != nil {
		return Field[T]{}, err
	}
	return Field[T]{handle: h, column: column, def: def}, nil
}

func (f Field[T]) Column() string { return f.column }

// Get returns the cached value, or the default when absent or null.
func (f Field[T]) Get(ctx context.Context) (T, error) {
	v, _, err := f.handle.Get(ctx, f.column)
	if err != nil || v == nil {
		return f.def, err
	}
	t, ok := v.(T)
	if !ok {
		return f.def, fmt.Errorf("%w: %s.%s holds %T, not %T", core.ErrTypeMismatch, f.handle.schema.TableName, f.column, v, f.def)
	}
	return t, nil
}

func (f Field[T]) Set(ctx context.Context, v T) error {
	return f.handle.Set(ctx, f.column, v)
}

// Clear removes the cached field.
func (f Field[T]) Clear(ctx context.Context) error {
	return f.handle.Delete(ctx, f.column)
}
