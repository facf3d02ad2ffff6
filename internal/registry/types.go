package registry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is the full runtime configuration. The public package re-exports
// it so the registry, backends and client share one definition.
type Config struct {
	KVStore   KVStoreConfig          `yaml:"kvstore" json:"kvstore"`
	Database  DatabaseConfig         `yaml:"database" json:"database"`
	Reconcile ReconcileConfig        `yaml:"reconcile" json:"reconcile"`
	Tables    map[string]TableConfig `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// KVStoreConfig contains configuration for the key-value hash store.
// Backends are selected by Type through the kvstore factory registry.
type KVStoreConfig struct {
	Type         string         `yaml:"type" json:"type"`
	KeyPrefix    string         `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
	Redis        RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB     DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	Pebble       PebbleConfig   `yaml:"pebble,omitempty" json:"pebble,omitempty"`
	MaxRetries   int            `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration  `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration  `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration  `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// PebbleConfig configures the embedded store.
type PebbleConfig struct {
	Path     string `yaml:"path" json:"path"`
	InMemory bool   `yaml:"in_memory,omitempty" json:"in_memory,omitempty"`
}

// DatabaseConfig contains configuration for the relational database.
type DatabaseConfig struct {
	Type              string        `yaml:"type" json:"type"`
	Host              string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port              int           `yaml:"port,omitempty" json:"port,omitempty"`
	Database          string        `yaml:"database,omitempty" json:"database,omitempty"`
	Username          string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode           string        `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`
	Path              string        `yaml:"path,omitempty" json:"path,omitempty"` // sqlite3 file
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// ReconcileConfig configures deferred push-back through a queue and drainer.
type ReconcileConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	QueueType        string        `yaml:"queue_type" json:"queue_type"`
	QueueBufferSize  int           `yaml:"queue_buffer_size" json:"queue_buffer_size"`
	QueueKey         string        `yaml:"queue_key,omitempty" json:"queue_key,omitempty"`
	BatchSize        int           `yaml:"batch_size" json:"batch_size"`
	DrainRate        int           `yaml:"drain_rate" json:"drain_rate"` // pushes per second
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxRetries       int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" json:"retry_backoff_base"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max" json:"retry_backoff_max"`
	Kafka            KafkaConfig   `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// KafkaConfig contains Kafka-specific queue configuration.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// TableConfig contains table-specific overrides.
type TableConfig struct {
	CreateIfMissing bool `yaml:"create_if_missing" json:"create_if_missing"`
	DrainRate       int  `yaml:"drain_rate,omitempty" json:"drain_rate,omitempty"`
}

// Validate implements validation.Validatable.
func (c KVStoreConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.DialTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
	)
}

// Validate implements validation.Validatable.
func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
		validation.Field(&c.ConnectionTimeout, validation.Required),
	)
}

// Validate implements validation.Validatable. Queue-specific settings are
// checked by the queue's own validator.
func (c ReconcileConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.QueueType, validation.Required),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.DrainRate, validation.Required, validation.Min(1)),
		validation.Field(&c.PollInterval, validation.Required),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.RetryBackoffMax, validation.Min(c.RetryBackoffBase)),
	)
}

// Validate implements validation.Validatable.
func (c TableConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DrainRate, validation.Min(0)),
	)
}
