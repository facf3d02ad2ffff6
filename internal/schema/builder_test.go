package schema

import (
	"testing"

	"github.com/rzpsarthak13/rowsync/internal/codec"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tier string

func (t tier) String() string { return string(t) }

var tiers = codec.NewEnum("tier", tier("FREE"), tier("PRO"))

type tag struct {
	Label string `json:"label"`
}

func usersSchema(t *testing.T) *core.Schema {
	t.Helper()
	s, err := NewTable("users").
		LongID("id").
		Varchar("name", 64).
		Integer("age").
		Boolean("active").
		Enum("tier", tiers).Nullable().
		JSON("tags", codec.JSON[[]tag]()).Nullable().
		Decimal("balance", 12, 2).Nullable().
		Date("born").Nullable().
		DateTime("seen_at").Nullable().
		UUID("ref").Nullable().
		Binary("avatar").Nullable().
		Build()
	require.NoError(t, err)
	return s
}

func TestTableBuilder_Build(t *testing.T) {
	s := usersSchema(t)

	assert.Equal(t, "users", s.TableName)
	assert.Equal(t, "id", s.PrimaryKey)
	assert.Equal(t, []string{"id", "name", "age", "active", "tier", "tags", "balance", "born", "seen_at", "ref", "avatar"}, s.ColumnNames())

	name, ok := s.Column("name")
	require.True(t, ok)
	assert.Equal(t, core.KindVarchar, name.Kind)
	assert.Equal(t, "VARCHAR(64)", name.SQLType)
	assert.False(t, name.Nullable)

	tierCol, ok := s.Column("tier")
	require.True(t, ok)
	assert.True(t, tierCol.Nullable)
	assert.Equal(t, "tier", tierCol.Enum.EnumName())

	id, err := s.IDColumn()
	require.NoError(t, err)
	assert.Equal(t, core.KindLong, id.Kind)
}

func TestTableBuilder_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		builder *TableBuilder
	}{
		{"no identifier", NewTable("t").Text("body")},
		{"two identifiers", NewTable("t").LongID("id").UUIDID("uid")},
		{"duplicate column", NewTable("t").LongID("id").Text("a").Integer("a")},
		{"nullable identifier", NewTable("t").LongID("id").Nullable()},
		{"nullable first", NewTable("t").Nullable().LongID("id")},
		{"empty table name", NewTable("").LongID("id")},
		{"bad varchar", NewTable("t").LongID("id").Varchar("v", 0)},
		{"bad decimal", NewTable("t").LongID("id").Decimal("d", 2, 5)},
		{"enum without type", NewTable("t").LongID("id").Enum("e", nil)},
		{"json without codec", NewTable("t").LongID("id").JSON("j", nil)},
		{"enum by type name", NewTable("t").LongID("id").Column("e", "enum")},
		{"json by ddl type", NewTable("t").LongID("id").Column("j", "JSONB")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			assert.Error(t, err)
		})
	}
}

func TestTableBuilder_MustBuildPanics(t *testing.T) {
	assert.Panics(t, func() { NewTable("t").MustBuild() })
}

func TestTableBuilder_Column(t *testing.T) {
	testCases := []struct {
		typ     string
		kind    core.Kind
		sqlType string
	}{
		{"long", core.KindLong, ""},
		{"DateTime", core.KindDateTime, ""},
		{"uuid", core.KindUUID, ""},
		{"BIGINT", core.KindLong, ""},
		{"int", core.KindInteger, ""},
		{"varchar(32)", core.KindVarchar, "VARCHAR(32)"},
		{"NUMERIC(10,2)", core.KindDecimal, "NUMERIC(10,2)"},
		{"TINYINT(1)", core.KindBoolean, "TINYINT(1)"},
		{"double precision", core.KindDouble, ""},
		{"bytea", core.KindBinary, ""},
		{"timestamptz", core.KindDateTime, ""},
		{"geometry", core.KindText, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.typ, func(t *testing.T) {
			s, err := NewTable("t").LongID("id").Column("c", tc.typ).Build()
			require.NoError(t, err)
			col, ok := s.Column("c")
			require.True(t, ok)
			assert.Equal(t, tc.kind, col.Kind)
			assert.Equal(t, tc.sqlType, col.SQLType)
		})
	}
}
