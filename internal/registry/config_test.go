package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	section string
	typ     string
	check   func(*Config) error
}

func (v stubValidator) Section() string { return v.section }
func (v stubValidator) Type() string    { return v.typ }
func (v stubValidator) Validate(c *Config) error {
	if v.check != nil {
		return v.check(c)
	}
	return nil
}

func init() {
	RegisterValidator(stubValidator{section: SectionKVStore, typ: "redis", check: func(c *Config) error {
		if len(c.KVStore.Redis.Endpoints) == 0 {
			return errors.New("at least one endpoint is required for Redis")
		}
		return nil
	}})
	RegisterValidator(stubValidator{section: SectionKVStore, typ: "pebble"})
	RegisterValidator(stubValidator{section: SectionDatabase, typ: "mysql"})
	RegisterValidator(stubValidator{section: SectionDatabase, typ: "sqlite3"})
	RegisterValidator(stubValidator{section: SectionQueue, typ: "memory"})
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestRegisterValidator_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterValidator(stubValidator{section: SectionKVStore, typ: "redis"})
	})
	assert.Panics(t, func() {
		RegisterValidator(stubValidator{section: "", typ: "x"})
	})
}

func TestConfigManager_LoadFromYAML(t *testing.T) {
	cm := NewConfigManager()
	err := cm.LoadFromYAML([]byte(`
kvstore:
  type: pebble
  key_prefix: app
  pebble:
    path: /tmp/cache
database:
  type: sqlite3
  path: /tmp/app.db
  max_open_conns: 1
reconcile:
  enabled: true
  queue_type: memory
  drain_rate: 20
  poll_interval: 250ms
tables:
  users:
    create_if_missing: true
`))
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.Equal(t, "pebble", cfg.KVStore.Type)
	assert.Equal(t, "app", cfg.KVStore.KeyPrefix)
	assert.Equal(t, "/tmp/cache", cfg.KVStore.Pebble.Path)
	assert.Equal(t, "sqlite3", cfg.Database.Type)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 250*time.Millisecond, cfg.Reconcile.PollInterval)
	assert.Equal(t, 100, cfg.Reconcile.BatchSize, "unset fields keep their defaults")
	assert.True(t, cfg.Tables["users"].CreateIfMissing)

	users := cm.GetTableConfig("users")
	assert.Equal(t, 20, users.DrainRate)
}

func TestConfigManager_LoadFromJSON(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromJSON([]byte(`{"database":{"type":"sqlite3","path":"x.db"}}`)))
	assert.Equal(t, "x.db", cm.GetConfig().Database.Path)
}

func TestConfigManager_InvalidKeepsPrevious(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"unknown kv type", "kvstore: {type: memcached}"},
		{"unknown database type", "database: {type: oracle}"},
		{"backend validator rejects", "kvstore: {type: redis, redis: {endpoints: []}}"},
		{"zero pool", "database: {max_open_conns: 0}"},
		{"reconcile without rate", "reconcile: {enabled: true, drain_rate: 0}"},
		{"unknown queue", "reconcile: {enabled: true, queue_type: rabbit}"},
		{"negative table drain", "tables: {users: {drain_rate: -1}}"},
		{"malformed", "kvstore: ["},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cm := NewConfigManager()
			before := cm.GetConfig()

			err := cm.LoadFromYAML([]byte(tc.yaml))
			assert.Error(t, err)
			assert.Same(t, before, cm.GetConfig())
		})
	}
}

func TestConfigManager_LoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "rowsync.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("database: {type: sqlite3}\n"), 0o600))

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromFile(yamlPath))
	assert.Equal(t, "sqlite3", cm.GetConfig().Database.Type)

	tomlPath := filepath.Join(dir, "rowsync.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(""), 0o600))
	assert.Error(t, cm.LoadFromFile(tomlPath))

	assert.Error(t, cm.LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestConfigManager_LoadFromEnv(t *testing.T) {
	t.Setenv("ROWSYNC_KVSTORE_TYPE", "pebble")
	t.Setenv("ROWSYNC_KVSTORE_ENDPOINTS", "a:1, b:2")
	t.Setenv("ROWSYNC_DATABASE_TYPE", "sqlite3")
	t.Setenv("ROWSYNC_DATABASE_MAX_OPEN_CONNS", "4")
	t.Setenv("ROWSYNC_RECONCILE_ENABLED", "true")
	t.Setenv("ROWSYNC_RECONCILE_POLL_INTERVAL", "2s")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromEnv())

	cfg := cm.GetConfig()
	assert.Equal(t, "pebble", cfg.KVStore.Type)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.KVStore.Redis.Endpoints)
	assert.Equal(t, "sqlite3", cfg.Database.Type)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Reconcile.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Reconcile.PollInterval)
}

func TestConfigManager_LoadFromEnvBadNumber(t *testing.T) {
	t.Setenv("ROWSYNC_DATABASE_PORT", "not-a-port")

	err := NewConfigManager().LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROWSYNC_DATABASE_PORT")
}

func TestConfigManager_LayersFileThenEnv(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte("database: {type: sqlite3, path: file.db}")))

	t.Setenv("ROWSYNC_DATABASE_PATH", "env.db")
	require.NoError(t, cm.LoadFromEnv())

	cfg := cm.GetConfig()
	assert.Equal(t, "sqlite3", cfg.Database.Type)
	assert.Equal(t, "env.db", cfg.Database.Path)
}
