package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/rowsync/internal/codec"
	"github.com/rzpsarthak13/rowsync/internal/core"
)

// TableMetadata contains metadata about a registered table.
type TableMetadata struct {
	// Schema is the table's column layout.
	Schema *core.Schema

	// Config contains the table-specific configuration merged with defaults.
	Config TableConfig

	// RegisteredAt is when the table was first registered.
	RegisteredAt time.Time

	// UpdatedAt is when the table definition last changed.
	UpdatedAt time.Time
}

// TableRegistry holds the defined tables and feeds their structural column
// codecs into the codec registry.
type TableRegistry struct {
	mu        sync.RWMutex
	tables    map[string]*TableMetadata
	configMgr *ConfigManager
	codecs    *codec.Registry
	lifecycle *LifecycleManager
	logger    *slog.Logger
}

// NewTableRegistry creates a table registry. A nil lifecycle manager gets a
// fresh empty one.
func NewTableRegistry(configMgr *ConfigManager, codecs *codec.Registry, lifecycle *LifecycleManager) *TableRegistry {
	if lifecycle == nil {
		lifecycle = NewLifecycleManager()
	}
	return &TableRegistry{
		tables:    make(map[string]*TableMetadata),
		configMgr: configMgr,
		codecs:    codecs,
		lifecycle: lifecycle,
		logger:    slog.Default().With("component", "registry"),
	}
}

// Register defines a table. Registering an already known table replaces its
// schema and keeps the original registration time.
func (tr *TableRegistry) Register(ctx context.Context, schema *core.Schema) error {
	if schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if schema.TableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if _, err := schema.IDColumn(); err != nil {
		return err
	}

	config := tr.configMgr.GetTableConfig(schema.TableName)
	if err := tr.lifecycle.ExecuteRegisterHooks(ctx, schema, config); err != nil {
		return fmt.Errorf("register hook failed for table %q: %w", schema.TableName, err)
	}

	for _, col := range schema.Columns {
		if col.Kind == core.KindJSON && col.Structural != nil {
			tr.codecs.RegisterStructural(col.Structural)
		}
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := time.Now()
	metadata := &TableMetadata{
		Schema:       schema,
		Config:       config,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if existing, exists := tr.tables[schema.TableName]; exists {
		metadata.RegisteredAt = existing.RegisteredAt
	}
	tr.tables[schema.TableName] = metadata

	tr.logger.Info("table registered", "table", schema.TableName, "columns", len(schema.Columns))
	return nil
}

// Schema returns the schema of a registered table.
func (tr *TableRegistry) Schema(tableName string) (*core.Schema, error) {
	metadata, err := tr.GetMetadata(tableName)
	if err != nil {
		return nil, err
	}
	return metadata.Schema, nil
}

// GetMetadata returns a copy of a table's metadata.
func (tr *TableRegistry) GetMetadata(tableName string) (*TableMetadata, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	metadata, exists := tr.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("%w: %q", core.ErrTableNotRegistered, tableName)
	}
	copied := *metadata
	return &copied, nil
}

// Unregister removes a table. Structural codecs stay registered since other
// tables may share the type.
func (tr *TableRegistry) Unregister(ctx context.Context, tableName string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	metadata, exists := tr.tables[tableName]
	if !exists {
		return fmt.Errorf("%w: %q", core.ErrTableNotRegistered, tableName)
	}
	if err := tr.lifecycle.ExecuteUnregisterHooks(ctx, metadata.Schema); err != nil {
		return fmt.Errorf("unregister hook failed for table %q: %w", tableName, err)
	}

	delete(tr.tables, tableName)
	return nil
}

// List returns the registered table names, sorted.
func (tr *TableRegistry) List() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	names := make([]string, 0, len(tr.tables))
	for name := range tr.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Codecs returns the codec registry tables register into.
func (tr *TableRegistry) Codecs() *codec.Registry {
	return tr.codecs
}

// Lifecycle returns the lifecycle manager associated with this registry.
func (tr *TableRegistry) Lifecycle() *LifecycleManager {
	return tr.lifecycle
}
