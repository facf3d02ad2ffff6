package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/rowsync/internal/codec"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
	"github.com/rzpsarthak13/rowsync/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plan string

func (p plan) String() string { return string(p) }

var plans = codec.NewEnum("plan", plan("BASIC"), plan("PREMIUM"))

type address struct {
	City string `json:"city"`
	Zip  string `json:"zip"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewSQLiteDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func accountsSchema() *core.Schema {
	return schema.NewTable("accounts").
		LongID("id").
		Varchar("owner", 64).
		Integer("age").
		Boolean("active").
		Enum("plan", plans).Nullable().
		JSON("address", codec.JSON[address]()).Nullable().
		Decimal("balance", 12, 2).Nullable().
		Date("opened_on").Nullable().
		DateTime("updated_at").Nullable().
		Binary("photo").Nullable().
		MustBuild()
}

func TestStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := accountsSchema()
	require.NoError(t, store.CreateTable(ctx, s))

	updated := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	id, err := store.Insert(ctx, s, core.Record{
		"owner":      "ada",
		"age":        int32(36),
		"active":     true,
		"plan":       plan("PREMIUM"),
		"address":    address{City: "London", Zip: "N1"},
		"balance":    decimal.RequireFromString("12.30"),
		"opened_on":  time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		"updated_at": updated,
		"photo":      []byte{1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	row, err := store.FindByID(ctx, s, id)
	require.NoError(t, err)

	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "ada", row["owner"])
	assert.Equal(t, int32(36), row["age"])
	assert.Equal(t, true, row["active"])
	assert.Equal(t, plan("PREMIUM"), row["plan"])
	assert.Equal(t, address{City: "London", Zip: "N1"}, row["address"])
	assert.True(t, decimal.RequireFromString("12.3").Equal(row["balance"].(decimal.Decimal)))
	assert.Equal(t, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC), row["opened_on"])
	assert.True(t, updated.Equal(row["updated_at"].(time.Time)))
	assert.Equal(t, []byte{1, 2, 3}, row["photo"])
}

func TestStore_InsertNullableColumnsOmitted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := accountsSchema()
	require.NoError(t, store.CreateTable(ctx, s))

	id, err := store.Insert(ctx, s, core.Record{"owner": "bob", "age": 20, "active": false})
	require.NoError(t, err)

	row, err := store.FindByID(ctx, s, id)
	require.NoError(t, err)
	assert.Nil(t, row["plan"])
	assert.Nil(t, row["address"])
	assert.Nil(t, row["balance"])
}

func TestStore_UUIDIdentifiers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := schema.NewTable("sessions").UUIDID("id").Text("agent").MustBuild()
	require.NoError(t, store.CreateTable(ctx, s))

	id, err := store.Insert(ctx, s, core.Record{"agent": "curl"})
	require.NoError(t, err)
	generated, ok := id.(uuid.UUID)
	require.True(t, ok, "generated id is a uuid.UUID, got %T", id)

	row, err := store.FindByID(ctx, s, generated.String())
	require.NoError(t, err)
	assert.Equal(t, generated, row["id"])

	fixed := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	id, err = store.Insert(ctx, s, core.Record{"id": fixed, "agent": "wget"})
	require.NoError(t, err)
	assert.Equal(t, fixed, id)
}

func TestStore_UpdateAndExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := accountsSchema()
	require.NoError(t, store.CreateTable(ctx, s))

	id, err := store.Insert(ctx, s, core.Record{"owner": "ada", "age": 30, "active": true})
	require.NoError(t, err)

	exists, err := store.Exists(ctx, s, id)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Update(ctx, s, id, core.Record{"age": int32(31), "plan": plan("BASIC")}))

	row, err := store.FindByID(ctx, s, id)
	require.NoError(t, err)
	assert.Equal(t, int32(31), row["age"])
	assert.Equal(t, plan("BASIC"), row["plan"])
	assert.Equal(t, "ada", row["owner"], "columns not assigned are untouched")

	require.NoError(t, store.Update(ctx, s, id, core.Record{}), "empty update is an existence check")
}

func TestStore_MissingRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := accountsSchema()
	require.NoError(t, store.CreateTable(ctx, s))

	_, err := store.FindByID(ctx, s, int64(404))
	assert.ErrorIs(t, err, core.ErrRowNotFound)

	exists, err := store.Exists(ctx, s, int64(404))
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Update(ctx, s, int64(404), core.Record{"age": 1})
	assert.ErrorIs(t, err, core.ErrRowNotFound)

	err = store.Update(ctx, s, int64(404), core.Record{})
	assert.ErrorIs(t, err, core.ErrRowNotFound)
}

func TestStore_UpdateRollsBackOnInvalidAssignment(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := accountsSchema()
	require.NoError(t, store.CreateTable(ctx, s))

	id, err := store.Insert(ctx, s, core.Record{"owner": "ada", "age": 30, "active": true})
	require.NoError(t, err)

	err = store.Update(ctx, s, id, core.Record{"age": "thirty"})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	// The connection is usable again after the rollback.
	row, err := store.FindByID(ctx, s, id)
	require.NoError(t, err)
	assert.Equal(t, int32(30), row["age"])
}

func TestDatabase_ClosedReturnsErrStoreClosed(t *testing.T) {
	db, err := NewSQLiteDatabase(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, core.ErrStoreClosed)
	_, err = db.BeginTx(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreClosed)
}

func TestFactory_Create(t *testing.T) {
	assert.Equal(t, []string{"mysql", "postgres", "sqlite3"}, GetRegisteredTypes())

	db, err := Create(registry.DatabaseConfig{Type: "sqlite3", Path: filepath.Join(t.TempDir(), "f.db")})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, core.DialectSQLite, db.Dialect())

	_, err = Create(registry.DatabaseConfig{Type: "sqlite3"})
	assert.Error(t, err)

	_, err = Create(registry.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)

	_, err = Create(registry.DatabaseConfig{Type: "mysql", Host: "localhost", Port: 3306})
	assert.Error(t, err, "database name and user are required")

	_, err = Create(registry.DatabaseConfig{Type: "postgres", Host: "h", Port: 5432, Database: "d", Username: "u", SSLMode: "maybe"})
	assert.Error(t, err)
}

func TestDatabase_RegistersConfigValidators(t *testing.T) {
	for _, typ := range []string{"mysql", "postgres", "sqlite3"} {
		_, ok := registry.GetValidator(registry.SectionDatabase, typ)
		assert.True(t, ok, typ)
	}
}

func TestQuoteDSN(t *testing.T) {
	assert.Equal(t, "localhost", quoteDSN("localhost"))
	assert.Equal(t, "''", quoteDSN(""))
	assert.Equal(t, `'p a\'ss'`, quoteDSN("p a'ss"))
}
