package mysql

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"screc/internal/core"
)

func setupMySQL(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close DB connection: %v", err)
		}
	})
	return db
}

func seed(t *testing.T, db *sql.DB, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func TestInspectIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupMySQL(t)
	ctx := context.Background()
	ins := New()

	seed(t, db,
		"CREATE TABLE users ("+
			" id INT NOT NULL AUTO_INCREMENT,"+
			" email VARCHAR(255) NOT NULL,"+
			" bio TEXT NULL,"+
			" status VARCHAR(20) NOT NULL DEFAULT 'pending',"+
			" created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,"+
			" PRIMARY KEY (id),"+
			" UNIQUE KEY idx_users_email (email),"+
			" KEY idx_users_status_created (status, created_at)"+
			") ENGINE=InnoDB",
		"CREATE TABLE posts ("+
			" id INT NOT NULL,"+
			" author_id INT NOT NULL,"+
			" PRIMARY KEY (id),"+
			" CONSTRAINT fk_posts_author FOREIGN KEY (author_id) REFERENCES users (id) ON DELETE CASCADE"+
			") ENGINE=InnoDB",
	)

	snap, err := ins.Inspect(ctx, db)
	require.NoError(t, err)
	require.Len(t, snap.Tables, 2)

	t.Run("columns and types", func(t *testing.T) {
		users := snap.FindTable("users")
		require.NotNil(t, users)
		require.Len(t, users.Columns, 5)

		id := users.FindColumn("id")
		require.NotNil(t, id)
		assert.Equal(t, core.TypeInteger, id.Type.Kind)
		assert.False(t, id.Nullable)

		email := users.FindColumn("email")
		require.NotNil(t, email)
		assert.Equal(t, core.VarChar(255), email.Type)

		bio := users.FindColumn("bio")
		require.NotNil(t, bio)
		assert.Equal(t, core.TypeText, bio.Type.Kind)
		assert.True(t, bio.Nullable)

		status := users.FindColumn("status")
		require.NotNil(t, status)
		require.NotNil(t, status.DefaultValue)
		assert.Equal(t, "pending", *status.DefaultValue)

		created := users.FindColumn("created_at")
		require.NotNil(t, created)
		assert.Equal(t, core.TypeTimestamp, created.Type.Kind)
		require.NotNil(t, created.DefaultValue)
		assert.Equal(t, "CURRENT_TIMESTAMP", *created.DefaultValue)
	})

	t.Run("primary key", func(t *testing.T) {
		assert.Equal(t, []string{"id"}, snap.FindTable("users").PrimaryKey)
	})

	t.Run("indexes exclude the primary key", func(t *testing.T) {
		users := snap.FindTable("users")
		require.Len(t, users.Indexes, 2)

		byName := make(map[string]*core.Index)
		for _, idx := range users.Indexes {
			byName[idx.Name] = idx
		}

		email := byName["idx_users_email"]
		require.NotNil(t, email)
		assert.Equal(t, []string{"email"}, email.Columns)
		assert.True(t, email.Unique)

		// Each column must appear exactly once, in seq_in_index order.
		composite := byName["idx_users_status_created"]
		require.NotNil(t, composite)
		assert.Equal(t, []string{"status", "created_at"}, composite.Columns)
		assert.False(t, composite.Unique)
	})

	t.Run("foreign keys", func(t *testing.T) {
		posts := snap.FindTable("posts")
		require.NotNil(t, posts)
		require.Len(t, posts.ForeignKeys, 1)
		fk := posts.ForeignKeys[0]
		assert.Equal(t, "fk_posts_author", fk.Name)
		assert.Equal(t, []string{"author_id"}, fk.Columns)
		assert.Equal(t, "users", fk.RefTable)
		assert.Equal(t, []string{"id"}, fk.RefColumns)
		assert.Equal(t, core.RefActionCascade, fk.OnDelete)
	})

	t.Run("existence probes", func(t *testing.T) {
		exists, err := ins.TableExists(ctx, db, "users")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = ins.TableExists(ctx, db, "ghosts")
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = ins.ColumnExists(ctx, db, "users", "email")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = ins.ColumnExists(ctx, db, "users", "phone")
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = ins.IndexExists(ctx, db, "users", "idx_users_email")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = ins.IndexExists(ctx, db, "users", "idx_nope")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestInspectEmptyDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupMySQL(t)

	snap, err := New().Inspect(context.Background(), db)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}
