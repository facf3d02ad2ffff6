package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listHashStore interface {
	core.HashStore
	core.ListStore
}

func redisConfig(addr string) registry.KVStoreConfig {
	return registry.KVStoreConfig{
		Type: "redis",
		Redis: registry.RedisConfig{
			Endpoints: []string{addr},
			PoolSize:  4,
		},
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

func newRedisStore(t *testing.T) (*RedisKVStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisKVStore(redisConfig(mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func newPebbleStore(t *testing.T) *PebbleKVStore {
	t.Helper()
	store, err := NewPebbleKVStore("", true)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHashStores(t *testing.T) {
	backends := map[string]func(t *testing.T) listHashStore{
		"redis": func(t *testing.T) listHashStore {
			s, _ := newRedisStore(t)
			return s
		},
		"pebble": func(t *testing.T) listHashStore {
			return newPebbleStore(t)
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("hash", func(t *testing.T) {
				testHashOperations(t, open(t))
			})
			t.Run("list", func(t *testing.T) {
				testListOperations(t, open(t))
			})
			t.Run("closed", func(t *testing.T) {
				testClosedStore(t, open(t))
			})
		})
	}
}

func testHashOperations(t *testing.T, store core.HashStore) {
	ctx := context.Background()

	_, ok, err := store.HGet(ctx, "users:1", "name")
	require.NoError(t, err)
	assert.False(t, ok, "missing key")

	all, err := store.HGetAll(ctx, "users:1")
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, store.HSet(ctx, "users:1", map[string]string{"name": "ada", "age": "36", "empty": ""}))
	require.NoError(t, store.HSet(ctx, "users:10", map[string]string{"name": "other"}))
	require.NoError(t, store.HSet(ctx, "users:1", map[string]string{}))

	v, ok, err := store.HGet(ctx, "users:1", "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada", v)

	v, ok, err = store.HGet(ctx, "users:1", "empty")
	require.NoError(t, err)
	assert.True(t, ok, "empty string is a present value")
	assert.Equal(t, "", v)

	_, ok, err = store.HGet(ctx, "users:1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err = store.HGetAll(ctx, "users:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "ada", "age": "36", "empty": ""}, all)

	require.NoError(t, store.HSet(ctx, "users:1", map[string]string{"age": "37"}))
	require.NoError(t, store.HDel(ctx, "users:1", "empty"))

	all, err = store.HGetAll(ctx, "users:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "ada", "age": "37"}, all)

	require.NoError(t, store.Del(ctx, "users:1"))
	all, err = store.HGetAll(ctx, "users:1")
	require.NoError(t, err)
	assert.Empty(t, all)

	all, err = store.HGetAll(ctx, "users:10")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "other"}, all, "neighbouring keys are untouched")
}

func testListOperations(t *testing.T, store core.ListStore) {
	ctx := context.Background()

	v, err := store.ListPop(ctx, "queue")
	require.NoError(t, err)
	assert.Nil(t, v)

	for _, item := range []string{"a", "b", "c"} {
		require.NoError(t, store.ListPush(ctx, "queue", []byte(item)))
	}
	n, err := store.ListLength(ctx, "queue")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	v, err = store.ListPop(ctx, "queue")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), v)

	require.NoError(t, store.ListPush(ctx, "queue", []byte("d")))

	var rest []string
	for {
		v, err := store.ListPop(ctx, "queue")
		require.NoError(t, err)
		if v == nil {
			break
		}
		rest = append(rest, string(v))
	}
	assert.Equal(t, []string{"b", "c", "d"}, rest)
}

func testClosedStore(t *testing.T, store listHashStore) {
	ctx := context.Background()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, _, err := store.HGet(ctx, "k", "f")
	assert.ErrorIs(t, err, core.ErrStoreClosed)
	assert.ErrorIs(t, store.HSet(ctx, "k", map[string]string{"f": "v"}), core.ErrStoreClosed)
	_, err = store.HGetAll(ctx, "k")
	assert.ErrorIs(t, err, core.ErrStoreClosed)
	assert.ErrorIs(t, store.HDel(ctx, "k", "f"), core.ErrStoreClosed)
	assert.ErrorIs(t, store.Del(ctx, "k"), core.ErrStoreClosed)
	assert.ErrorIs(t, store.ListPush(ctx, "k", []byte("v")), core.ErrStoreClosed)
}

func TestRedis_UnreachableIsBackendUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, _, err := store.HGet(context.Background(), "k", "f")
	assert.ErrorIs(t, err, core.ErrBackendUnavailable)
}

func TestRedis_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisKVStore(redisConfig(addr))
	assert.ErrorIs(t, err, core.ErrBackendUnavailable)
}

func TestPebble_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewPebbleKVStore(dir, false)
	require.NoError(t, err)
	require.NoError(t, store.HSet(ctx, "users:1", map[string]string{"name": "ada"}))
	require.NoError(t, store.Close())

	store, err = NewPebbleKVStore(dir, false)
	require.NoError(t, err)
	defer store.Close()

	v, ok, err := store.HGet(ctx, "users:1", "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada", v)
}

func TestFactory(t *testing.T) {
	assert.Equal(t, []string{"dynamodb", "pebble", "redis"}, GetRegisteredTypes())
	assert.True(t, IsTypeRegistered("pebble"))
	assert.False(t, IsTypeRegistered("memcached"))

	for _, typ := range GetRegisteredTypes() {
		_, ok := registry.GetValidator(registry.SectionKVStore, typ)
		assert.True(t, ok, typ)
	}

	mr := miniredis.RunT(t)
	store, err := Create(redisConfig(mr.Addr()))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Create(registry.KVStoreConfig{Type: "pebble", Pebble: registry.PebbleConfig{InMemory: true}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	tests := []struct {
		name   string
		config registry.KVStoreConfig
	}{
		{"missing type", registry.KVStoreConfig{}},
		{"unknown type", registry.KVStoreConfig{Type: "memcached"}},
		{"redis without endpoints", registry.KVStoreConfig{Type: "redis"}},
		{"redis bad db", func() registry.KVStoreConfig {
			c := redisConfig("localhost:6379")
			c.Redis.DB = 16
			return c
		}()},
		{"pebble without path", registry.KVStoreConfig{Type: "pebble"}},
		{"dynamodb without table", registry.KVStoreConfig{Type: "dynamodb", DynamoDB: registry.DynamoDBConfig{Region: "eu-west-1"}}},
		{"dynamodb half credentials", registry.KVStoreConfig{Type: "dynamodb", DynamoDB: registry.DynamoDBConfig{
			Region: "eu-west-1", TableName: "cache", AccessKeyID: "AKIA",
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(tt.config)
			assert.Error(t, err)
		})
	}
}
