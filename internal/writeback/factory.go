package writeback

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// QueueFactory is the Strategy interface for creating reconcile queues.
type QueueFactory interface {
	// Create builds a queue. store is the configured hash store, which
	// list-backed queues reuse.
	Create(config registry.ReconcileConfig, store core.HashStore) (core.ReconcileQueue, error)

	// Type returns the queue type identifier (e.g., "memory", "redis").
	Type() string

	// Validate validates the queue-specific configuration.
	Validate(config *registry.Config) error
}

var (
	factoryRegistry = make(map[string]QueueFactory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a queue factory and its config validator.
func RegisterFactory(factory QueueFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		registryMutex.Unlock()
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
	registryMutex.Unlock()

	registry.RegisterValidator(configValidator{factory: factory})
}

// Create builds the queue registered for config.QueueType.
func Create(config registry.ReconcileConfig, store core.HashStore) (core.ReconcileQueue, error) {
	registryMutex.RLock()
	factory, exists := factoryRegistry[config.QueueType]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported queue type: %q", config.QueueType)
	}
	if err := factory.Validate(&registry.Config{Reconcile: config}); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s queue: %w", config.QueueType, err)
	}
	return factory.Create(config, store)
}

// GetRegisteredTypes returns the registered queue types, sorted.
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

type configValidator struct {
	factory QueueFactory
}

func (v configValidator) Section() string { return registry.SectionQueue }

func (v configValidator) Type() string { return v.factory.Type() }

func (v configValidator) Validate(config *registry.Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	return v.factory.Validate(config)
}

type memoryQueueFactory struct{}

func (memoryQueueFactory) Type() string { return "memory" }

func (memoryQueueFactory) Validate(config *registry.Config) error {
	if config.Reconcile.QueueBufferSize < 0 {
		return fmt.Errorf("queue_buffer_size must be non-negative, got: %d", config.Reconcile.QueueBufferSize)
	}
	return nil
}

func (memoryQueueFactory) Create(config registry.ReconcileConfig, _ core.HashStore) (core.ReconcileQueue, error) {
	return NewMemoryQueue(config.QueueBufferSize), nil
}

// listQueueFactory backs the "redis" queue type. Any hash store that also
// implements core.ListStore can host it.
type listQueueFactory struct{}

func (listQueueFactory) Type() string { return "redis" }

func (listQueueFactory) Validate(config *registry.Config) error {
	if config.Reconcile.QueueKey == "" {
		return fmt.Errorf("queue_key is required for the redis queue")
	}
	return nil
}

func (listQueueFactory) Create(config registry.ReconcileConfig, store core.HashStore) (core.ReconcileQueue, error) {
	ops, ok := store.(core.ListStore)
	if !ok {
		return nil, fmt.Errorf("kvstore %T does not support list operations", store)
	}
	return NewListQueue(ops, config.QueueKey), nil
}

type kafkaQueueFactory struct{}

func (kafkaQueueFactory) Type() string { return "kafka" }

func (kafkaQueueFactory) Validate(config *registry.Config) error {
	kc := config.Reconcile.Kafka
	if len(kc.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if kc.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	switch kc.RequiredAcks {
	case -1, 0, 1:
	default:
		return fmt.Errorf("kafka.required_acks must be -1, 0 or 1, got: %d", kc.RequiredAcks)
	}
	return nil
}

func (kafkaQueueFactory) Create(config registry.ReconcileConfig, _ core.HashStore) (core.ReconcileQueue, error) {
	return NewKafkaQueue(config.Kafka)
}

func init() {
	RegisterFactory(memoryQueueFactory{})
	RegisterFactory(listQueueFactory{})
	RegisterFactory(kafkaQueueFactory{})
}
