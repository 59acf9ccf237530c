package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screc/internal/core"
	"screc/internal/dialect"
)

func str(s string) *string { return &s }

func TestRendererIsRegistered(t *testing.T) {
	r, err := dialect.NewRenderer(core.DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, core.DialectSQLite, r.Name())
}

func TestQuoting(t *testing.T) {
	r := New()
	assert.Equal(t, `"users"`, r.QuoteIdentifier("users"))
	assert.Equal(t, `"we""ird"`, r.QuoteIdentifier(`we"ird`))
	assert.Equal(t, "'it''s'", r.QuoteString("it's"))
}

func TestTypeNameKeepsLogicalSpelling(t *testing.T) {
	r := New()
	assert.Equal(t, "INTEGER", r.TypeName(core.Type{Kind: core.TypeInteger}))
	assert.Equal(t, "VARCHAR(64)", r.TypeName(core.VarChar(64)))
	assert.Equal(t, "TIMESTAMP", r.TypeName(core.Type{Kind: core.TypeTimestamp}))
}

func TestFormatValue(t *testing.T) {
	r := New()
	assert.Equal(t, "0", r.FormatValue("0"))
	assert.Equal(t, "-1.5", r.FormatValue("-1.5"))
	assert.Equal(t, "'pending'", r.FormatValue("pending"))
	assert.Equal(t, "CURRENT_TIMESTAMP", r.FormatValue("current_timestamp"))
	assert.Equal(t, "NULL", r.FormatValue("null"))
	assert.Equal(t, "''", r.FormatValue(""))
}

func TestColumnDefinition(t *testing.T) {
	r := New()

	col := &core.Column{Name: "status", Type: core.VarChar(20), Nullable: false, DefaultValue: str("pending")}
	assert.Equal(t, `"status" VARCHAR(20) NOT NULL DEFAULT 'pending'`, r.ColumnDefinition(col))

	nullable := &core.Column{Name: "bio", Type: core.Type{Kind: core.TypeText}, Nullable: true}
	assert.Equal(t, `"bio" TEXT`, r.ColumnDefinition(nullable))

	unique := &core.Column{Name: "email", Type: core.VarChar(255), Nullable: true, Unique: true}
	assert.Equal(t, `"email" VARCHAR(255) UNIQUE`, r.ColumnDefinition(unique))
}

func TestCreateTable(t *testing.T) {
	r := New()
	table := &core.Table{
		Name: "posts",
		Columns: []*core.Column{
			{Name: "id", Type: core.Type{Kind: core.TypeInteger}},
			{Name: "user_id", Type: core.Type{Kind: core.TypeInteger}},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []*core.ForeignKey{{
			Columns:    []string{"user_id"},
			RefTable:   "users",
			RefColumns: []string{"id"},
			OnDelete:   core.RefActionCascade,
		}},
	}

	sql := r.CreateTable(table)
	assert.Contains(t, sql, `CREATE TABLE "posts"`)
	assert.Contains(t, sql, `PRIMARY KEY ("id")`)
	assert.Contains(t, sql, `FOREIGN KEY ("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`)
}

func TestStatements(t *testing.T) {
	r := New()

	idx := &core.Index{Name: "idx_users_email", Columns: []string{"email"}, Unique: true}
	assert.Equal(t, `CREATE UNIQUE INDEX "idx_users_email" ON "users" ("email")`, r.CreateIndex("users", idx))

	col := &core.Column{Name: "age", Type: core.Type{Kind: core.TypeInteger}, Nullable: true}
	assert.Equal(t, `ALTER TABLE "users" ADD COLUMN "age" INTEGER`, r.AddColumn("users", col))

	assert.Equal(t, `ALTER TABLE "users" RENAME TO "users_old"`, r.RenameTable("users", "users_old"))
	assert.Equal(t, `DROP TABLE "users_old"`, r.DropTable("users_old"))
	assert.Equal(t, `ALTER TABLE "users" DROP COLUMN "legacy"`, r.DropColumn("users", "legacy"))
}

func TestInsertSelect(t *testing.T) {
	r := New()
	sql := r.InsertSelect("users", "users_old",
		[]string{"id", "name", "status"},
		[]string{`"id"`, `"name"`, `COALESCE("status", 'pending')`})
	assert.Equal(t,
		`INSERT INTO "users" ("id", "name", "status") SELECT "id", "name", COALESCE("status", 'pending') FROM "users_old"`,
		sql)
}

func TestBackfillUpdate(t *testing.T) {
	r := New()
	assert.Equal(t,
		`UPDATE "users" SET "email" = "legacy_email" WHERE "email" IS NULL`,
		r.BackfillUpdate("users", "email", `"legacy_email"`))
}
