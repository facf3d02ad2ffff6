package registry

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// LifecycleHook runs when a table is defined or dropped from the registry.
// Hooks are called synchronously; a failing OnRegister aborts the definition.
type LifecycleHook interface {
	OnRegister(ctx context.Context, schema *core.Schema, config TableConfig) error
	OnUnregister(ctx context.Context, schema *core.Schema) error
}

// LifecycleHookFunc adapts plain functions to LifecycleHook. Nil funcs are no-ops.
type LifecycleHookFunc struct {
	OnRegisterFunc   func(ctx context.Context, schema *core.Schema, config TableConfig) error
	OnUnregisterFunc func(ctx context.Context, schema *core.Schema) error
}

// OnRegister calls the OnRegisterFunc if it's not nil.
func (f LifecycleHookFunc) OnRegister(ctx context.Context, schema *core.Schema, config TableConfig) error {
	if f.OnRegisterFunc != nil {
		return f.OnRegisterFunc(ctx, schema, config)
	}
	return nil
}

// OnUnregister calls the OnUnregisterFunc if it's not nil.
func (f LifecycleHookFunc) OnUnregister(ctx context.Context, schema *core.Schema) error {
	if f.OnUnregisterFunc != nil {
		return f.OnUnregisterFunc(ctx, schema)
	}
	return nil
}

// LifecycleManager holds the hooks run by a TableRegistry, in registration order.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// RegisterHook appends a hook.
func (lm *LifecycleManager) RegisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

func (lm *LifecycleManager) snapshot() []LifecycleHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	hooks := make([]LifecycleHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	return hooks
}

// ExecuteRegisterHooks runs every OnRegister in order, stopping at the first error.
func (lm *LifecycleManager) ExecuteRegisterHooks(ctx context.Context, schema *core.Schema, config TableConfig) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnRegister(ctx, schema, config); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteUnregisterHooks runs every OnUnregister in order, stopping at the first error.
func (lm *LifecycleManager) ExecuteUnregisterHooks(ctx context.Context, schema *core.Schema) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnUnregister(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}
