// Package mysql contains the inspector implementation for MySQL-like
// backends. All metadata comes from information_schema, scoped to the
// connection's current database.
package mysql

import (
	"context"
	"database/sql"

	"screc/internal/core"
	"screc/internal/inspect"
)

func init() {
	inspect.Register(core.DialectMySQL, New)
}

type inspector struct{}

// New creates a MySQL inspector.
func New() inspect.Inspector {
	return &inspector{}
}

func (i *inspector) Inspect(ctx context.Context, db *sql.DB) (*core.Snapshot, error) {
	snap := &core.Snapshot{Dialect: core.DialectMySQL}

	names, err := listTables(ctx, db)
	if err != nil {
		return nil, &core.IntrospectionError{Err: err}
	}

	for _, name := range names {
		t := &core.Table{Name: name}
		if err := introspectColumns(ctx, db, t); err != nil {
			return nil, &core.IntrospectionError{Table: name, Err: err}
		}
		if err := introspectIndexes(ctx, db, t); err != nil {
			return nil, &core.IntrospectionError{Table: name, Err: err}
		}
		if err := introspectForeignKeys(ctx, db, t); err != nil {
			return nil, &core.IntrospectionError{Table: name, Err: err}
		}
		snap.Tables = append(snap.Tables, t)
	}

	return snap, nil
}

func listTables(ctx context.Context, q inspect.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (i *inspector) TableExists(ctx context.Context, q inspect.Querier, table string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?
	`, table).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (i *inspector) ColumnExists(ctx context.Context, q inspect.Querier, table, column string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (i *inspector) IndexExists(ctx context.Context, q inspect.Querier, table, index string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT index_name)
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?
	`, table, index).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
