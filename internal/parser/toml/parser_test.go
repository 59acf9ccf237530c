package toml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screc/internal/core"
)

const fullDocument = `
[schema]
name = "app"
version = "3"

[[tables]]
name = "users"
primary_key = ["id"]

  [[tables.columns]]
  name = "id"
  type = "integer"
  nullable = false

  [[tables.columns]]
  name = "email"
  type = "varchar(255)"
  nullable = false
  default = "unknown"
  unique = true

  [[tables.columns]]
  name = "contact"
  type = "varchar(255)"
  backfill_from = "email"

  [[tables.indexes]]
  name = "idx_users_email"
  columns = ["email"]
  unique = true

[[tables]]
name = "posts"
primary_key = ["id"]

  [[tables.columns]]
  name = "id"
  type = "integer"
  nullable = false

  [[tables.columns]]
  name = "author_id"
  type = "integer"
  nullable = false

  [[tables.foreign_keys]]
  name = "fk_posts_author"
  columns = ["author_id"]
  references = "users"
  ref_columns = ["id"]
  on_delete = "cascade"
`

func TestParseFullDocument(t *testing.T) {
	schema, err := NewParser().Parse(strings.NewReader(fullDocument))
	require.NoError(t, err)

	assert.Equal(t, "app", schema.Name)
	assert.Equal(t, "3", schema.Version)
	require.Len(t, schema.Tables, 2)

	users := schema.Tables[0]
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	require.Len(t, users.Columns, 3)

	id := users.Columns[0]
	assert.Equal(t, core.TypeInteger, id.Type.Kind)
	assert.False(t, id.Nullable)

	email := users.Columns[1]
	assert.Equal(t, core.VarChar(255), email.Type)
	assert.False(t, email.Nullable)
	require.NotNil(t, email.DefaultValue)
	assert.Equal(t, "unknown", *email.DefaultValue)
	assert.True(t, email.Unique)

	contact := users.Columns[2]
	assert.True(t, contact.Nullable, "nullable defaults to true when omitted")
	assert.Nil(t, contact.DefaultValue)
	assert.Equal(t, "email", contact.BackfillFrom)

	require.Len(t, users.Indexes, 1)
	assert.True(t, users.Indexes[0].Unique)

	posts := schema.Tables[1]
	require.Len(t, posts.ForeignKeys, 1)
	fk := posts.ForeignKeys[0]
	assert.Equal(t, "users", fk.RefTable)
	assert.Equal(t, []string{"id"}, fk.RefColumns)
	assert.Equal(t, core.RefActionCascade, fk.OnDelete)
}

func TestParseRefActions(t *testing.T) {
	tests := []struct {
		raw  string
		want core.RefAction
	}{
		{"", core.RefActionNone},
		{"no-action", core.RefActionNone},
		{"cascade", core.RefActionCascade},
		{"CASCADE", core.RefActionCascade},
		{" set-null ", core.RefActionSetNull},
		{"restrict", core.RefActionRestrict},
	}
	for _, tt := range tests {
		got, err := parseRefAction(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseRejectsUnknownRefAction(t *testing.T) {
	doc := strings.Replace(fullDocument, `on_delete = "cascade"`, `on_delete = "obliterate"`, 1)
	_, err := NewParser().Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported on_delete")
	assert.Contains(t, err.Error(), "obliterate")
}

func TestParseRejectsUnknownColumnType(t *testing.T) {
	doc := strings.Replace(fullDocument, `type = "varchar(255)"`, `type = "blob"`, 1)
	_, err := NewParser().Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "users"`)
	assert.Contains(t, err.Error(), `column "email"`)
}

func TestParseRunsValidation(t *testing.T) {
	doc := strings.Replace(fullDocument, `primary_key = ["id"]`, `primary_key = []`, 1)
	_, err := NewParser().Parse(strings.NewReader(doc))
	var perr *core.PlanningError
	require.ErrorAs(t, err, &perr)
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader(`[schema unterminated`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode error")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(path, []byte(fullDocument), 0o644))

	schema, err := NewParser().ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "app", schema.Name)
}

func TestParseFileMissing(t *testing.T) {
	_, err := NewParser().ParseFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
