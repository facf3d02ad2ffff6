package rowsync

import (
	"fmt"

	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// Config is the full client configuration: hash store, relational database,
// deferred reconciliation and per-table overrides.
type Config = registry.Config

// Section configuration types, re-exported so callers can build a Config
// in code.
type (
	KVStoreConfig   = registry.KVStoreConfig
	RedisConfig     = registry.RedisConfig
	DynamoDBConfig  = registry.DynamoDBConfig
	PebbleConfig    = registry.PebbleConfig
	DatabaseConfig  = registry.DatabaseConfig
	ReconcileConfig = registry.ReconcileConfig
	KafkaConfig     = registry.KafkaConfig
	TableConfig     = registry.TableConfig
)

// DefaultConfig returns a configuration with sensible defaults: Redis on
// localhost, MySQL on localhost and reconciliation disabled.
func DefaultConfig() *Config {
	return registry.DefaultConfig()
}

// LoadConfig builds a configuration from the defaults, the file at path
// (YAML or JSON by extension, skipped when path is empty) and finally the
// ROWSYNC_* environment variables.
func LoadConfig(path string) (*Config, error) {
	cm := registry.NewConfigManager()
	if path != "" {
		if err := cm.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := cm.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}
	return cm.GetConfig(), nil
}
