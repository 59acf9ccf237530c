package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		raw  string
		want Type
	}{
		{"integer", Type{Kind: TypeInteger}},
		{"INT", Type{Kind: TypeInteger}},
		{"bigint", Type{Kind: TypeBigInt}},
		{"text", Type{Kind: TypeText}},
		{"varchar(64)", VarChar(64)},
		{"VARCHAR(255)", VarChar(255)},
		{"bool", Type{Kind: TypeBoolean}},
		{"boolean", Type{Kind: TypeBoolean}},
		{"timestamp", Type{Kind: TypeTimestamp}},
		{"datetime", Type{Kind: TypeTimestamp}},
		{"json", Type{Kind: TypeJSON}},
	}

	for _, tt := range tests {
		got, err := ParseType(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestParseTypeRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "blob", "varchar", "varchar(0)", "varchar(-1)", "decimal(10,2)"} {
		_, err := ParseType(raw)
		assert.Error(t, err, raw)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		raw  string
		want Type
	}{
		{"INTEGER", Type{Kind: TypeInteger}},
		{"int", Type{Kind: TypeInteger}},
		{"int unsigned", Type{Kind: TypeInteger}},
		{"BIGINT AUTO_INCREMENT", Type{Kind: TypeBigInt}},
		{"tinyint(1)", Type{Kind: TypeBoolean}},
		{"BOOLEAN", Type{Kind: TypeBoolean}},
		{"varchar(64)", VarChar(64)},
		{"VARCHAR(255)", VarChar(255)},
		{"TEXT", Type{Kind: TypeText}},
		{"longtext", Type{Kind: TypeText}},
		{"TIMESTAMP", Type{Kind: TypeTimestamp}},
		{"datetime(6)", Type{Kind: TypeTimestamp}},
		{"json", Type{Kind: TypeJSON}},
		{"geometry", Type{Kind: TypeUnknown}},
		{"", Type{Kind: TypeUnknown}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeType(tt.raw), tt.raw)
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "INTEGER", Type{Kind: TypeInteger}.String())
	assert.Equal(t, "VARCHAR(40)", VarChar(40).String())
}

func TestTypeEqual(t *testing.T) {
	assert.True(t, VarChar(64).Equal(VarChar(64)))
	assert.False(t, VarChar(64).Equal(VarChar(128)))
	assert.True(t, Type{Kind: TypeText}.Equal(Type{Kind: TypeText}))
	assert.False(t, Type{Kind: TypeText}.Equal(Type{Kind: TypeInteger}))
}

func TestNormalizeDefault(t *testing.T) {
	str := func(s string) *string { return &s }

	assert.Equal(t, "", NormalizeDefault(nil))
	assert.Equal(t, "pending", NormalizeDefault(str("pending")))
	assert.Equal(t, "pending", NormalizeDefault(str("'pending'")))
	assert.Equal(t, "it's", NormalizeDefault(str("'it''s'")))
	assert.Equal(t, "0", NormalizeDefault(str("0")))
	assert.Equal(t, "CURRENT_TIMESTAMP", NormalizeDefault(str("current_timestamp")))
	assert.Equal(t, "CURRENT_TIMESTAMP", NormalizeDefault(str("CURRENT_TIMESTAMP()")))
	assert.Equal(t, "NULL", NormalizeDefault(str("null")))
}

func TestFindersAreCaseInsensitive(t *testing.T) {
	table := &Table{
		Name: "Users",
		Columns: []*Column{
			{Name: "ID", Type: Type{Kind: TypeInteger}},
			{Name: "Email", Type: VarChar(255)},
		},
		Indexes: []*Index{{Name: "idx_users_email", Columns: []string{"Email"}}},
	}
	schema := &Schema{Name: "app", Tables: []*Table{table}}

	require.NotNil(t, schema.FindTable("users"))
	assert.Nil(t, schema.FindTable("posts"))
	require.NotNil(t, table.FindColumn("email"))
	assert.Nil(t, table.FindColumn("missing"))
	require.NotNil(t, table.FindIndex("IDX_USERS_EMAIL"))

	snap := &Snapshot{Dialect: DialectSQLite, Tables: []*Table{table}}
	require.NotNil(t, snap.FindTable("USERS"))
	assert.False(t, snap.IsEmpty())
	assert.Equal(t, []string{"Users"}, snap.TableNames())

	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.FindTable("users"))
	assert.True(t, nilSnap.IsEmpty())
}

func TestIsValidDialect(t *testing.T) {
	assert.True(t, IsValidDialect("sqlite"))
	assert.True(t, IsValidDialect("MySQL"))
	assert.False(t, IsValidDialect("postgres"))
}
