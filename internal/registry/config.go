package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config sections that carry a pluggable backend type.
const (
	SectionKVStore  = "kvstore"
	SectionDatabase = "database"
	SectionQueue    = "queue"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "ROWSYNC_"

// ConfigValidator is the Strategy interface for validating configuration.
// Each backend (Redis, MySQL, Kafka, etc.) provides its own validator for
// the section it plugs into.
type ConfigValidator interface {
	// Validate validates the part of config this backend owns.
	Validate(config *Config) error

	// Section is the config section the backend belongs to (SectionKVStore,
	// SectionDatabase or SectionQueue).
	Section() string

	// Type returns the backend type identifier (e.g., "redis", "sqlite3").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators by section and type.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

func validatorKey(section, typ string) string {
	return section + "/" + typ
}

// RegisterValidator registers a config validator.
// This is called automatically by each backend's init() function.
// Panics if validator is nil, type is empty, or type is already registered.
func RegisterValidator(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" || validator.Section() == "" {
		panic("validator section and type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	key := validatorKey(validator.Section(), validator.Type())
	if _, exists := validatorRegistry[key]; exists {
		panic(fmt.Sprintf("validator for %q is already registered", key))
	}
	validatorRegistry[key] = validator
}

// GetValidator retrieves the validator for a section and backend type.
func GetValidator(section, typ string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorKey(section, typ)]
	return validator, exists
}

// ConfigManager handles loading and managing configuration from various sources.
// Sources layer: each Load call starts from the current configuration.
type ConfigManager struct {
	mu     sync.RWMutex
	config *Config
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultConfig(),
	}
}

// NewConfigManagerWith wraps an already built configuration after validating it.
func NewConfigManagerWith(config *Config) (*ConfigManager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &ConfigManager{config: config}, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		KVStore: KVStoreConfig{
			Type: "redis",
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 5,
			},
			Pebble: PebbleConfig{
				Path: "rowsync-cache",
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			Type:              "mysql",
			Host:              "localhost",
			Port:              3306,
			Database:          "rowsync",
			Username:          "root",
			MaxOpenConns:      25,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		Reconcile: ReconcileConfig{
			Enabled:          false,
			QueueType:        "memory",
			QueueBufferSize:  10000,
			QueueKey:         "rowsync:reconcile",
			BatchSize:        100,
			DrainRate:        50,
			PollInterval:     100 * time.Millisecond,
			MaxRetries:       5,
			RetryBackoffBase: 1 * time.Second,
			RetryBackoffMax:  30 * time.Second,
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "rowsync-reconcile",
				GroupID:         "rowsync-reconcile",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,      // All replicas
				MaxMessageBytes: 1000000, // 1MB
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024, // 10MB
				MaxWait:         100 * time.Millisecond,
			},
		},
		Tables: make(map[string]TableConfig),
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	return cm.load(func(config *Config) error {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
		return nil
	})
}

// LoadFromJSON loads configuration from JSON data. Durations are nanoseconds.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	return cm.load(func(config *Config) error {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return nil
	})
}

// LoadFromEnv overlays environment variables onto the current configuration.
// Variables follow the pattern ROWSYNC_<SECTION>_<KEY>, for example:
//   - ROWSYNC_KVSTORE_TYPE=pebble
//   - ROWSYNC_KVSTORE_ENDPOINTS=localhost:6379,localhost:6380
//   - ROWSYNC_DATABASE_TYPE=sqlite3
//   - ROWSYNC_DATABASE_PATH=/var/lib/rowsync/app.db
//   - ROWSYNC_RECONCILE_DRAIN_RATE=100
func (cm *ConfigManager) LoadFromEnv() error {
	return cm.load(func(config *Config) error {
		e := envReader{}

		// KV Store configuration
		e.setString("KVSTORE_TYPE", &config.KVStore.Type)
		e.setString("KVSTORE_KEY_PREFIX", &config.KVStore.KeyPrefix)
		e.setList("KVSTORE_ENDPOINTS", &config.KVStore.Redis.Endpoints)
		e.setString("KVSTORE_PASSWORD", &config.KVStore.Redis.Password)
		e.setInt("KVSTORE_DB", &config.KVStore.Redis.DB)
		e.setInt("KVSTORE_POOL_SIZE", &config.KVStore.Redis.PoolSize)
		e.setInt("KVSTORE_MAX_RETRIES", &config.KVStore.MaxRetries)
		e.setString("KVSTORE_DYNAMODB_REGION", &config.KVStore.DynamoDB.Region)
		e.setString("KVSTORE_DYNAMODB_TABLE", &config.KVStore.DynamoDB.TableName)
		e.setString("KVSTORE_DYNAMODB_ENDPOINT", &config.KVStore.DynamoDB.Endpoint)
		e.setString("KVSTORE_PEBBLE_PATH", &config.KVStore.Pebble.Path)

		// Database configuration
		e.setString("DATABASE_TYPE", &config.Database.Type)
		e.setString("DATABASE_HOST", &config.Database.Host)
		e.setInt("DATABASE_PORT", &config.Database.Port)
		e.setString("DATABASE_DATABASE", &config.Database.Database)
		e.setString("DATABASE_USERNAME", &config.Database.Username)
		e.setString("DATABASE_PASSWORD", &config.Database.Password)
		e.setString("DATABASE_SSL_MODE", &config.Database.SSLMode)
		e.setString("DATABASE_PATH", &config.Database.Path)
		e.setInt("DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
		e.setInt("DATABASE_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)

		// Reconcile configuration
		e.setBool("RECONCILE_ENABLED", &config.Reconcile.Enabled)
		e.setString("RECONCILE_QUEUE_TYPE", &config.Reconcile.QueueType)
		e.setInt("RECONCILE_BATCH_SIZE", &config.Reconcile.BatchSize)
		e.setInt("RECONCILE_DRAIN_RATE", &config.Reconcile.DrainRate)
		e.setInt("RECONCILE_MAX_RETRIES", &config.Reconcile.MaxRetries)
		e.setDuration("RECONCILE_POLL_INTERVAL", &config.Reconcile.PollInterval)
		e.setList("RECONCILE_KAFKA_BROKERS", &config.Reconcile.Kafka.Brokers)
		e.setString("RECONCILE_KAFKA_TOPIC", &config.Reconcile.Kafka.Topic)

		return e.err
	})
}

// load applies fn to a copy of the current config and swaps it in only
// when the result validates.
func (cm *ConfigManager) load(fn func(*Config) error) error {
	cm.mu.RLock()
	config := cm.config.clone()
	cm.mu.RUnlock()

	if err := fn(config); err != nil {
		return err
	}
	if err := Validate(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return nil
}

// GetConfig returns the current configuration.
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// GetTableConfig returns the configuration for a specific table, with
// unset fields filled from the global defaults.
func (cm *ConfigManager) GetTableConfig(tableName string) TableConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	tableConfig := cm.config.Tables[tableName]
	if tableConfig.DrainRate == 0 {
		tableConfig.DrainRate = cm.config.Reconcile.DrainRate
	}
	return tableConfig
}

// Validate checks the generic rules of every section, then hands each
// pluggable section to its backend's validator.
func Validate(config *Config) error {
	if err := validation.ValidateStruct(config,
		validation.Field(&config.KVStore),
		validation.Field(&config.Database),
		validation.Field(&config.Reconcile),
		validation.Field(&config.Tables),
	); err != nil {
		return err
	}

	sections := []struct {
		name string
		typ  string
	}{
		{SectionKVStore, config.KVStore.Type},
		{SectionDatabase, config.Database.Type},
	}
	if config.Reconcile.Enabled {
		sections = append(sections, struct {
			name string
			typ  string
		}{SectionQueue, config.Reconcile.QueueType})
	}

	for _, s := range sections {
		validator, exists := GetValidator(s.name, s.typ)
		if !exists {
			return fmt.Errorf("unsupported %s type: %s", s.name, s.typ)
		}
		if err := validator.Validate(config); err != nil {
			return fmt.Errorf("%s validation failed: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) clone() *Config {
	out := *c
	out.KVStore.Redis.Endpoints = append([]string(nil), c.KVStore.Redis.Endpoints...)
	out.Reconcile.Kafka.Brokers = append([]string(nil), c.Reconcile.Kafka.Brokers...)
	out.Tables = make(map[string]TableConfig, len(c.Tables))
	for name, tc := range c.Tables {
		out.Tables[name] = tc
	}
	return &out
}

// envReader collects the first parse error while reading ROWSYNC_* variables.
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (e *envReader) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
}

func (e *envReader) setString(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e *envReader) setList(name string, dst *[]string) {
	if val, ok := e.lookup(name); ok {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func (e *envReader) setInt(name string, dst *int) {
	if val, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(name string, dst *bool) {
	if val, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(name string, dst *time.Duration) {
	if val, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = d
	}
}
