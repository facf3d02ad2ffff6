package schema

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "users:42", Key("", "users", int64(42)))
	assert.Equal(t, "app:users:42", Key("app", "users", 42))

	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, "orders:6ba7b810-9dad-11d1-80b4-00c04fd430c8", Key("", "orders", id))
}

func TestTranslator_CreateTable(t *testing.T) {
	s := NewTable("users").LongID("id").Varchar("name", 64).Boolean("active").Double("score").Nullable().MustBuild()

	testCases := []struct {
		dialect core.Dialect
		want    string
	}{
		{
			core.DialectSQLite,
			`CREATE TABLE IF NOT EXISTS "users" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" VARCHAR(64) NOT NULL, "active" BOOLEAN NOT NULL, "score" REAL)`,
		},
		{
			core.DialectMySQL,
			"CREATE TABLE IF NOT EXISTS `users` (`id` BIGINT AUTO_INCREMENT PRIMARY KEY, `name` VARCHAR(64) NOT NULL, `active` BOOLEAN NOT NULL, `score` DOUBLE)",
		},
		{
			core.DialectPostgres,
			`CREATE TABLE IF NOT EXISTS "users" ("id" BIGSERIAL PRIMARY KEY, "name" VARCHAR(64) NOT NULL, "active" BOOLEAN NOT NULL, "score" DOUBLE PRECISION)`,
		},
	}

	for _, tc := range testCases {
		t.Run(string(tc.dialect), func(t *testing.T) {
			got, err := NewTranslator(tc.dialect).CreateTable(s)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTranslator_SelectAndCount(t *testing.T) {
	s := NewTable("users").LongID("id").Text("name").MustBuild()

	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "id" = ?`, NewTranslator(core.DialectSQLite).SelectByID(s))
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "id" = $1`, NewTranslator(core.DialectPostgres).SelectByID(s))
	assert.Equal(t, "SELECT COUNT(*) FROM `users` WHERE `id` = ?", NewTranslator(core.DialectMySQL).CountByID(s))
}

func TestTranslator_Insert(t *testing.T) {
	s := usersSchema(t)
	tr := NewTranslator(core.DialectPostgres)

	query, args, err := tr.Insert(s, core.Record{
		"name":    "ada",
		"age":     int32(30),
		"active":  true,
		"tier":    tier("PRO"),
		"balance": decimal.RequireFromString("10.50"),
		"born":    time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
	}, true)
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO "users" ("name", "age", "active", "tier", "balance", "born") VALUES ($1, $2, $3, $4, $5, $6) RETURNING "id"`,
		query)
	assert.Equal(t, []any{"ada", int64(30), true, "PRO", "10.5", "1815-12-10"}, args)
}

func TestTranslator_InsertRejects(t *testing.T) {
	s := usersSchema(t)
	tr := NewTranslator(core.DialectSQLite)

	_, _, err := tr.Insert(s, core.Record{"name": "ada", "age": int32(1)}, false)
	assert.ErrorIs(t, err, core.ErrTypeMismatch, "active is required")

	_, _, err = tr.Insert(s, core.Record{"name": "ada", "age": "old", "active": true}, false)
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	_, _, err = tr.Insert(s, core.Record{"name": "ada", "age": 1, "active": true, "nickname": "a"}, false)
	assert.ErrorIs(t, err, core.ErrUnknownColumn)

	_, _, err = tr.Insert(s, core.Record{"name": "ada", "age": 1, "active": true, "tier": tier("GOLD")}, false)
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestTranslator_Update(t *testing.T) {
	s := usersSchema(t)
	tr := NewTranslator(core.DialectSQLite)

	query, args, err := tr.Update(s, "7", core.Record{
		"active": false,
		"age":    int32(31),
		"tags":   []tag{{Label: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "age" = ?, "active" = ?, "tags" = ? WHERE "id" = ?`, query)
	assert.Equal(t, []any{int64(31), false, `[{"label":"x"}]`, int64(7)}, args)

	pg := NewTranslator(core.DialectPostgres)
	query, _, err = pg.Update(s, int64(7), core.Record{"name": "b", "age": 2})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1, "age" = $2 WHERE "id" = $3`, query)
}

func TestTranslator_UpdateRejects(t *testing.T) {
	s := usersSchema(t)
	tr := NewTranslator(core.DialectSQLite)

	_, _, err := tr.Update(s, 1, core.Record{})
	assert.Error(t, err)

	_, _, err = tr.Update(s, 1, core.Record{"id": int64(2)})
	assert.Error(t, err)

	_, _, err = tr.Update(s, 1, core.Record{"name": nil})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	_, _, err = tr.Update(s, nil, core.Record{"name": "x"})
	assert.Error(t, err)
}

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		*(d.(*any)) = r.values[i]
	}
	return nil
}

func TestTranslator_FromDB(t *testing.T) {
	s := usersSchema(t)
	tr := NewTranslator(core.DialectMySQL)

	ref := uuid.New()
	row := fakeRow{values: []any{
		int64(1),
		[]byte("ada"),
		int64(30),
		int64(1),
		[]byte("FREE"),
		[]byte(`[{"label":"math"}]`),
		[]byte("12.30"),
		[]byte("1815-12-10"),
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		[]byte(ref.String()),
		nil,
	}}

	record, err := tr.FromDB(row, s)
	require.NoError(t, err)

	assert.Equal(t, int64(1), record["id"])
	assert.Equal(t, "ada", record["name"])
	assert.Equal(t, int32(30), record["age"])
	assert.Equal(t, true, record["active"])
	assert.Equal(t, tier("FREE"), record["tier"])
	assert.Equal(t, []tag{{Label: "math"}}, record["tags"])
	assert.True(t, decimal.RequireFromString("12.3").Equal(record["balance"].(decimal.Decimal)))
	assert.Equal(t, time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC), record["born"])
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), record["seen_at"])
	assert.Equal(t, ref, record["ref"])
	assert.Nil(t, record["avatar"])
}
