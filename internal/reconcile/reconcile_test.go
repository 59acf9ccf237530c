package reconcile

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screc/internal/backup"
	"screc/internal/core"
	_ "screc/internal/dialect/sqlite"
	"screc/internal/exec"
	_ "screc/internal/inspect/sqlite"
	"screc/internal/plan"
)

func str(s string) *string { return &s }

func openSQLite(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reconcile.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func declaredSchema() *core.Schema {
	return &core.Schema{
		Name: "app",
		Tables: []*core.Table{
			{
				Name: "users",
				Columns: []*core.Column{
					{Name: "id", Type: core.Type{Kind: core.TypeInteger}},
					{Name: "email", Type: core.VarChar(255), Nullable: false, DefaultValue: str("unknown")},
					{Name: "name", Type: core.Type{Kind: core.TypeText}, Nullable: true},
				},
				PrimaryKey: []string{"id"},
				Indexes: []*core.Index{
					{Name: "idx_users_email", Columns: []string{"email"}, Unique: true},
				},
			},
		},
	}
}

func newReconciler(t *testing.T, db *sql.DB, path string, mutate func(*Options)) *Reconciler {
	t.Helper()
	opts := Options{
		DB:             db,
		Dialect:        core.DialectSQLite,
		BackupProvider: backup.NewFileCopy(t.TempDir()),
		BackupTarget:   path,
	}
	if mutate != nil {
		mutate(&opts)
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestApplyThenReplanIsEmpty(t *testing.T) {
	db, path := openSQLite(t)
	r := newReconciler(t, db, path, nil)
	ctx := context.Background()

	p, result, err := r.Apply(ctx, declaredSchema())
	require.NoError(t, err)
	assert.Equal(t, exec.StatusSuccess, result.Status)
	assert.False(t, p.IsEmpty())

	// The live database now matches the declaration, so the second pass
	// must find nothing to do.
	again, err := r.Plan(ctx, declaredSchema())
	require.NoError(t, err)
	assert.True(t, again.IsEmpty(), "steps: %+v", again.Steps)
}

func TestReconcileIsRepeatable(t *testing.T) {
	db, path := openSQLite(t)
	r := newReconciler(t, db, path, nil)
	ctx := context.Background()

	result, err := r.Reconcile(ctx, declaredSchema())
	require.NoError(t, err)
	assert.Equal(t, exec.StatusSuccess, result.Status)

	result, err = r.Reconcile(ctx, declaredSchema())
	require.NoError(t, err)
	assert.Equal(t, exec.StatusNoOp, result.Status)
}

func TestPlanAcceptsRowidPrimaryKeyIdiom(t *testing.T) {
	db, path := openSQLite(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	declared := &core.Schema{
		Name: "app",
		Tables: []*core.Table{
			{
				Name: "users",
				Columns: []*core.Column{
					{Name: "id", Type: core.Type{Kind: core.TypeInteger}},
					{Name: "name", Type: core.Type{Kind: core.TypeText}, Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
		},
	}

	r := newReconciler(t, db, path, nil)
	p, err := r.Plan(context.Background(), declared)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty(), "steps: %+v", p.Steps)
}

func TestPlanAddsMissingColumn(t *testing.T) {
	db, path := openSQLite(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email VARCHAR(255) NOT NULL DEFAULT 'unknown')`)
	require.NoError(t, err)

	r := newReconciler(t, db, path, nil)
	p, err := r.Plan(context.Background(), declaredSchema())
	require.NoError(t, err)

	var kinds []plan.StepKind
	for _, s := range p.Steps {
		kinds = append(kinds, s.Kind)
	}
	assert.Contains(t, kinds, plan.StepAddColumn)
	assert.Contains(t, kinds, plan.StepCreateIndex)
	assert.NotContains(t, kinds, plan.StepCreateTable)
}

func TestApplyNewUniqueColumnRebuildsTable(t *testing.T) {
	db, path := openSQLite(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email VARCHAR(255) NOT NULL DEFAULT 'unknown', name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, email, name) VALUES (1, 'a@x.com', 'ada'), (2, 'b@x.com', 'grace')`)
	require.NoError(t, err)

	declared := declaredSchema()
	declared.Tables[0].Columns = append(declared.Tables[0].Columns, &core.Column{
		Name:     "handle",
		Type:     core.VarChar(64),
		Nullable: true,
		Unique:   true,
	})

	r := newReconciler(t, db, path, nil)
	p, result, err := r.Apply(context.Background(), declared)
	require.NoError(t, err)
	assert.Equal(t, exec.StatusSuccess, result.Status)

	var kinds []plan.StepKind
	for _, s := range p.Steps {
		kinds = append(kinds, s.Kind)
	}
	assert.Contains(t, kinds, plan.StepRebuildTable)
	assert.NotContains(t, kinds, plan.StepAddColumn)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users WHERE handle IS NULL`).Scan(&n))
	assert.Equal(t, 2, n, "every row survives the rebuild with the new column unset")
}

func TestPlanRejectsDropsWithoutOptIn(t *testing.T) {
	db, path := openSQLite(t)
	r := newReconciler(t, db, path, func(o *Options) {
		o.Drops = []DropRequest{{Table: "audit_log"}}
	})

	_, err := r.Plan(context.Background(), declaredSchema())
	var perr *core.PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "destructive opt-in")
}

func TestApplyHonorsDropRequests(t *testing.T) {
	db, path := openSQLite(t)
	_, err := db.Exec(`CREATE TABLE audit_log (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	r := newReconciler(t, db, path, func(o *Options) {
		o.AllowDestructive = true
		o.Drops = []DropRequest{{Table: "audit_log"}}
	})

	p, result, err := r.Apply(context.Background(), declaredSchema())
	require.NoError(t, err)
	assert.Equal(t, exec.StatusSuccess, result.Status)
	assert.True(t, p.HasDrops())
	require.NotNil(t, result.Backup, "drops must be preceded by a backup")

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'audit_log'`).Scan(&n))
	assert.Zero(t, n)
}

func TestPlanRejectsPrimaryKeyColumnDrop(t *testing.T) {
	db, path := openSQLite(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email VARCHAR(255) NOT NULL DEFAULT 'unknown', name TEXT)`)
	require.NoError(t, err)

	r := newReconciler(t, db, path, func(o *Options) {
		o.AllowDestructive = true
		o.Drops = []DropRequest{{Table: "users", Column: "ID"}}
	})

	_, err = r.Plan(context.Background(), declaredSchema())
	var perr *core.PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "primary key")
}

func TestDropColumnRequiresInlineDropCapability(t *testing.T) {
	db, path := openSQLite(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, legacy TEXT)`)
	require.NoError(t, err)

	r := newReconciler(t, db, path, func(o *Options) {
		o.AllowDestructive = true
		o.Drops = []DropRequest{{Table: "users", Column: "legacy"}}
	})
	r.caps.InlineDropColumn = false

	_, err = r.Plan(context.Background(), declaredSchema())
	var perr *core.PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "drop a column in place")
}

func TestPlanRejectsEmptyDropTableName(t *testing.T) {
	db, path := openSQLite(t)
	r := newReconciler(t, db, path, func(o *Options) {
		o.AllowDestructive = true
		o.Drops = []DropRequest{{Column: "email"}}
	})

	_, err := r.Plan(context.Background(), declaredSchema())
	var perr *core.PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "empty table name")
}

func TestPlanReportsConnectionError(t *testing.T) {
	db, path := openSQLite(t)
	require.NoError(t, db.Close())

	r := newReconciler(t, db, path, nil)
	_, err := r.Plan(context.Background(), declaredSchema())
	var cerr *core.ConnectionError
	require.ErrorAs(t, err, &cerr)
}

func TestPlanRejectsInvalidDeclaration(t *testing.T) {
	db, path := openSQLite(t)
	r := newReconciler(t, db, path, nil)

	bad := declaredSchema()
	bad.Tables[0].PrimaryKey = nil
	_, err := r.Plan(context.Background(), bad)
	var perr *core.PlanningError
	require.ErrorAs(t, err, &perr)
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(Options{Dialect: core.DialectSQLite})
	require.Error(t, err)
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	db, _ := openSQLite(t)
	_, err := New(Options{DB: db, Dialect: core.Dialect("oracle")})
	require.Error(t, err)
}

func TestPreflightIsNilForSQLite(t *testing.T) {
	db, path := openSQLite(t)
	r := newReconciler(t, db, path, nil)

	p, err := r.Plan(context.Background(), declaredSchema())
	require.NoError(t, err)
	assert.Nil(t, r.Preflight(p))
}
