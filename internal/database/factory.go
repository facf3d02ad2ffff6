package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// DatabaseFactory is the Strategy interface for creating relational
// database connections. Each driver registers one from its init().
type DatabaseFactory interface {
	// Create opens a database for the configuration.
	Create(config registry.DatabaseConfig) (core.Database, error)

	// Type returns the type identifier for this factory (e.g., "mysql").
	Type() string

	// Validate validates the configuration specific to this driver.
	Validate(config registry.DatabaseConfig) error
}

var (
	// factoryRegistry stores all registered database factories.
	factoryRegistry = make(map[string]DatabaseFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a database factory.
func RegisterFactory(factory DatabaseFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Create opens a database using the factory registered for config.Type.
func Create(config registry.DatabaseConfig) (core.Database, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("database type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	return factory.Create(config)
}

// GetRegisteredTypes returns the registered database types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// configValidator adapts a factory's Validate to registry.ConfigValidator so
// whole-config validation covers the database section.
type configValidator struct {
	factory DatabaseFactory
}

func (v configValidator) Section() string { return registry.SectionDatabase }

func (v configValidator) Type() string { return v.factory.Type() }

func (v configValidator) Validate(config *registry.Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	return v.factory.Validate(config.Database)
}

// register installs a factory and its config validator.
func register(factory DatabaseFactory) {
	RegisterFactory(factory)
	registry.RegisterValidator(configValidator{factory: factory})
}
