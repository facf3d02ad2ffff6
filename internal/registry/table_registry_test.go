package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rzpsarthak13/rowsync/internal/codec"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func ordersSchema() *core.Schema {
	return &core.Schema{
		TableName:  "orders",
		PrimaryKey: "id",
		Columns: []core.Column{
			{Name: "id", Kind: core.KindLong},
			{Name: "items", Kind: core.KindJSON, Structural: codec.JSON[[]lineItem]()},
		},
	}
}

func TestTableRegistry_RegisterFeedsStructuralCodecs(t *testing.T) {
	codecs := codec.NewRegistry()
	tr := NewTableRegistry(NewConfigManager(), codecs, nil)

	require.NoError(t, tr.Register(context.Background(), ordersSchema()))

	sc, err := codecs.ResolveStructural([]lineItem{{SKU: "a", Qty: 1}})
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf([]lineItem{}), sc.Type())

	s, err := tr.Schema("orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", s.TableName)
	assert.Equal(t, []string{"orders"}, tr.List())
}

func TestTableRegistry_ReRegisterKeepsRegisteredAt(t *testing.T) {
	tr := NewTableRegistry(NewConfigManager(), codec.NewRegistry(), nil)
	ctx := context.Background()

	require.NoError(t, tr.Register(ctx, ordersSchema()))
	first, err := tr.GetMetadata("orders")
	require.NoError(t, err)

	require.NoError(t, tr.Register(ctx, ordersSchema()))
	second, err := tr.GetMetadata("orders")
	require.NoError(t, err)

	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	assert.Equal(t, []string{"orders"}, tr.List())
}

func TestTableRegistry_RejectsBadSchemas(t *testing.T) {
	tr := NewTableRegistry(NewConfigManager(), codec.NewRegistry(), nil)
	ctx := context.Background()

	assert.Error(t, tr.Register(ctx, nil))
	assert.Error(t, tr.Register(ctx, &core.Schema{PrimaryKey: "id"}))
	assert.ErrorIs(t, tr.Register(ctx, &core.Schema{TableName: "t", PrimaryKey: "id"}), core.ErrUnknownColumn)
}

func TestTableRegistry_UnknownTable(t *testing.T) {
	tr := NewTableRegistry(NewConfigManager(), codec.NewRegistry(), nil)

	_, err := tr.Schema("ghosts")
	assert.ErrorIs(t, err, core.ErrTableNotRegistered)

	err = tr.Unregister(context.Background(), "ghosts")
	assert.ErrorIs(t, err, core.ErrTableNotRegistered)
}

func TestTableRegistry_LifecycleHooks(t *testing.T) {
	lm := NewLifecycleManager()
	var registered, unregistered []string
	lm.RegisterHook(LifecycleHookFunc{
		OnRegisterFunc: func(_ context.Context, s *core.Schema, _ TableConfig) error {
			registered = append(registered, s.TableName)
			return nil
		},
		OnUnregisterFunc: func(_ context.Context, s *core.Schema) error {
			unregistered = append(unregistered, s.TableName)
			return nil
		},
	})

	tr := NewTableRegistry(NewConfigManager(), codec.NewRegistry(), lm)
	ctx := context.Background()

	require.NoError(t, tr.Register(ctx, ordersSchema()))
	require.NoError(t, tr.Unregister(ctx, "orders"))

	assert.Equal(t, []string{"orders"}, registered)
	assert.Equal(t, []string{"orders"}, unregistered)
	assert.Empty(t, tr.List())
	assert.Same(t, lm, tr.Lifecycle())
}

func TestTableRegistry_FailingHookAbortsRegister(t *testing.T) {
	boom := errors.New("boom")
	lm := NewLifecycleManager()
	lm.RegisterHook(LifecycleHookFunc{
		OnRegisterFunc: func(context.Context, *core.Schema, TableConfig) error { return boom },
	})

	tr := NewTableRegistry(NewConfigManager(), codec.NewRegistry(), lm)
	err := tr.Register(context.Background(), ordersSchema())

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, tr.List())
}
