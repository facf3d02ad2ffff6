package main

import (
	"github.com/rzpsarthak13/rowsync/pkg/rowsync"
)

type userStatus string

func (s userStatus) String() string { return string(s) }

var userStatuses = rowsync.NewEnum("user_status", userStatus("ACTIVE"), userStatus("SUSPENDED"), userStatus("CLOSED"))

func usersTable() *rowsync.Schema {
	return rowsync.NewTable("users").
		LongID("id").
		Varchar("name", 128).
		Column("email", "VARCHAR(255)").
		Integer("age").
		Boolean("active").
		Enum("status", userStatuses).Nullable().
		JSON("tags", rowsync.JSON[[]string]()).Nullable().
		Column("updated_at", "datetime").Nullable().
		MustBuild()
}

func demoTables() []*rowsync.Schema {
	return []*rowsync.Schema{usersTable()}
}
