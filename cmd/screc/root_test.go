package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screc/internal/core"
	"screc/internal/reconcile"
)

func TestResolveDialect(t *testing.T) {
	tests := []struct {
		name     string
		override string
		dsn      string
		want     core.Dialect
		wantErr  bool
	}{
		{name: "explicit sqlite", override: "sqlite", want: core.DialectSQLite},
		{name: "explicit mysql uppercased", override: "MySQL", want: core.DialectMySQL},
		{name: "explicit unknown", override: "oracle", wantErr: true},
		{name: "mysql dsn inferred", dsn: "root:pass@tcp(127.0.0.1:3306)/app", want: core.DialectMySQL},
		{name: "file path falls back to sqlite", dsn: "app.db", want: core.DialectSQLite},
		{name: "sqlite uri falls back to sqlite", dsn: "file:app.db?cache=shared", want: core.DialectSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDialect(tt.override, tt.dsn)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSqliteFilePath(t *testing.T) {
	assert.Equal(t, "app.db", sqliteFilePath("app.db"))
	assert.Equal(t, "app.db", sqliteFilePath("file:app.db"))
	assert.Equal(t, "/var/lib/app.db", sqliteFilePath("file:/var/lib/app.db?cache=shared&mode=rwc"))
}

func TestParseDrops(t *testing.T) {
	drops, err := parseDrops([]string{"audit_log", "users.legacy_email", " ", ""})
	require.NoError(t, err)
	require.Len(t, drops, 2)
	assert.Equal(t, reconcile.DropRequest{Table: "audit_log"}, drops[0])
	assert.Equal(t, reconcile.DropRequest{Table: "users", Column: "legacy_email"}, drops[1])

	_, err = parseDrops([]string{"users."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty column name")

	_, err = parseDrops([]string{".email"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty table name")
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ConnectionError{Err: errors.New("refused")}, 2},
		{&core.IntrospectionError{Err: errors.New("denied")}, 3},
		{&core.PlanningError{Reason: "narrowing"}, 4},
		{&core.BackupError{Err: errors.New("disk full")}, 5},
		{&core.ExecutionError{Err: errors.New("syntax")}, 6},
		{errors.New("anything else"), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
