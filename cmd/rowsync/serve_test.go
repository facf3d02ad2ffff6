package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/rowsync/internal/database"
	"github.com/rzpsarthak13/rowsync/internal/kvstore"
	"github.com/rzpsarthak13/rowsync/internal/writeback"
	"github.com/rzpsarthak13/rowsync/pkg/rowsync"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	kv, err := kvstore.NewRedisKVStore(rowsync.KVStoreConfig{
		Type:         "redis",
		Redis:        rowsync.RedisConfig{Endpoints: []string{mr.Addr()}, PoolSize: 2},
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	require.NoError(t, err)
	db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)

	client, err := rowsync.NewClient(db, kv, rowsync.WithQueue(writeback.NewMemoryQueue(8)))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	for _, s := range demoTables() {
		require.NoError(t, client.Define(context.Background(), s, true))
	}

	srv := httptest.NewServer(newServer(client).routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestServer_UserLifecycle(t *testing.T) {
	srv := newTestServer(t)

	status, out := do(t, http.MethodPost, srv.URL+"/users",
		`{"name":"ada","email":"ada@example.com","age":30,"active":true,"status":"ACTIVE","tags":["admin"]}`)
	require.Equal(t, http.StatusCreated, status, out)
	assert.Equal(t, "users:1", out["key"])
	user := fmt.Sprintf("%s/users/%v", srv.URL, out["id"])

	status, out = do(t, http.MethodGet, user+"/fields/tags", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["present"])
	assert.Equal(t, []any{"admin"}, out["value"])

	status, _ = do(t, http.MethodPut, user+"/fields/age", `{"value":31}`)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, http.MethodPut, user+"/fields/status", `{"value":"SUSPENDED"}`)
	require.Equal(t, http.StatusNoContent, status)

	_, out = do(t, http.MethodGet, user, "")
	assert.Equal(t, float64(30), out["age"], "not pushed yet")

	status, _ = do(t, http.MethodPost, user+"/push", "")
	require.Equal(t, http.StatusNoContent, status)

	_, out = do(t, http.MethodGet, user, "")
	assert.Equal(t, float64(31), out["age"])
	assert.Equal(t, "SUSPENDED", out["status"])

	status, _ = do(t, http.MethodDelete, user+"/fields/age", "")
	require.Equal(t, http.StatusNoContent, status)
	_, out = do(t, http.MethodGet, user+"/fields/age", "")
	assert.Equal(t, false, out["present"])

	status, out = do(t, http.MethodPost, user+"/schedule", "")
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, float64(1), out["queue_size"])

	status, _ = do(t, http.MethodDelete, user, "")
	require.Equal(t, http.StatusNoContent, status)
	_, out = do(t, http.MethodGet, user+"/fields/name", "")
	assert.Equal(t, false, out["present"])
}

func TestServer_Errors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/users", `{`, http.StatusBadRequest},
		{"unknown column", http.MethodPost, "/users", `{"nope":1}`, http.StatusBadRequest},
		{"bad enum", http.MethodPost, "/users", `{"name":"x","email":"x","age":1,"active":true,"status":"GONE"}`, http.StatusBadRequest},
		{"missing row", http.MethodGet, "/users/99", "", http.StatusNotFound},
		{"push missing row", http.MethodPost, "/users/99/push", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/users/abc/fields/name", "", http.StatusBadRequest},
		{"bad field", http.MethodPut, "/users/1/fields/nope", `{"value":1}`, http.StatusBadRequest},
		{"bad value", http.MethodPut, "/users/1/fields/age", `{"value":"old"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	status, out := do(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, []any{"users"}, out["tables"])
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		_, err := newLogger(level)
		assert.NoError(t, err, level)
	}
	_, err := newLogger("loud")
	assert.Error(t, err)
}
