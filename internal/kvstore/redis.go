package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// RedisKVStore implements core.HashStore and core.ListStore on Redis hashes
// and lists.
type RedisKVStore struct {
	client *redis.Client
	logger *slog.Logger
	closed atomic.Bool
}

// NewRedisKVStore connects to the first endpoint and verifies it with a ping.
func NewRedisKVStore(config registry.KVStoreConfig) (*RedisKVStore, error) {
	rc := config.Redis
	if len(rc.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	// Single node only; a cluster endpoint list is reduced to its first entry.
	client := redis.NewClient(&redis.Options{
		Addr:         rc.Endpoints[0],
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w: %w", core.ErrBackendUnavailable, err)
	}

	return &RedisKVStore{
		client: client,
		logger: slog.Default().With("component", "kvstore", "backend", "redis"),
	}, nil
}

func (r *RedisKVStore) wrap(op, key string, err error) error {
	if isRedisConnError(err) {
		return fmt.Errorf("%s %s: %w: %w", op, key, core.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}

func isRedisConnError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, redis.ErrPoolTimeout)
}

// HGet reads a single hash field.
func (r *RedisKVStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if r.closed.Load() {
		return "", false, core.ErrStoreClosed
	}

	val, err := r.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.wrap("hget", key, err)
	}
	return val, true, nil
}

// HSet writes all fields with one HSET command.
func (r *RedisKVStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	args := make([]any, 0, 2*len(names))
	for _, f := range names {
		args = append(args, f, fields[f])
	}
	if err := r.client.HSet(ctx, key, args...).Err(); err != nil {
		return r.wrap("hset", key, err)
	}
	r.logger.Debug("hash fields written", "key", key, "fields", len(fields))
	return nil
}

// HGetAll reads the whole hash.
func (r *RedisKVStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if r.closed.Load() {
		return nil, core.ErrStoreClosed
	}

	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, r.wrap("hgetall", key, err)
	}
	return vals, nil
}

// HDel removes hash fields.
func (r *RedisKVStore) HDel(ctx context.Context, key string, fields ...string) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}
	if len(fields) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, key, fields...).Err(); err != nil {
		return r.wrap("hdel", key, err)
	}
	return nil
}

// Del removes the whole hash.
func (r *RedisKVStore) Del(ctx context.Context, key string) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return r.wrap("del", key, err)
	}
	return nil
}

// Close closes the connection to the KV store.
func (r *RedisKVStore) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}

// ListPush adds a value to the end of a list (RPUSH).
func (r *RedisKVStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}
	if err := r.client.RPush(ctx, key, value).Err(); err != nil {
		return r.wrap("rpush", key, err)
	}
	return nil
}

// ListPop removes and returns the first element from a list (LPOP).
// An empty list yields nil.
func (r *RedisKVStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, core.ErrStoreClosed
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, r.wrap("lpop", key, err)
	}
	return val, nil
}

// ListLength returns the length of a list (LLEN).
func (r *RedisKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed.Load() {
		return 0, core.ErrStoreClosed
	}
	n, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, r.wrap("llen", key, err)
	}
	return n, nil
}

// RedisKVStoreFactory creates Redis stores.
type RedisKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *RedisKVStoreFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisKVStoreFactory) Validate(config registry.KVStoreConfig) error {
	rc := config.Redis
	if len(rc.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if rc.DB < 0 || rc.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", rc.DB)
	}
	if rc.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", rc.PoolSize)
	}
	if rc.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", rc.MinIdleConns)
	}
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	if config.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", config.ReadTimeout)
	}
	if config.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", config.WriteTimeout)
	}
	return nil
}

// Create creates a new Redis store.
func (f *RedisKVStoreFactory) Create(config registry.KVStoreConfig) (core.HashStore, error) {
	store, err := NewRedisKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis KV store: %w", err)
	}
	return store, nil
}

func init() {
	register(&RedisKVStoreFactory{})
}
