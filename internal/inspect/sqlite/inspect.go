// Package sqlite contains the inspector implementation for SQLite. Table
// discovery goes through sqlite_master; per-table metadata comes from the
// table_info, index_list, index_info, and foreign_key_list PRAGMAs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"screc/internal/core"
	"screc/internal/inspect"
)

func init() {
	inspect.Register(core.DialectSQLite, New)
}

type inspector struct{}

// New creates a SQLite inspector.
func New() inspect.Inspector {
	return &inspector{}
}

func (i *inspector) Inspect(ctx context.Context, db *sql.DB) (*core.Snapshot, error) {
	snap := &core.Snapshot{Dialect: core.DialectSQLite}

	names, err := listTables(ctx, db)
	if err != nil {
		return nil, &core.IntrospectionError{Err: err}
	}

	for _, name := range names {
		t, err := introspectTable(ctx, db, name)
		if err != nil {
			return nil, &core.IntrospectionError{Table: name, Err: err}
		}
		snap.Tables = append(snap.Tables, t)
	}

	return snap, nil
}

func listTables(ctx context.Context, q inspect.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
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

func introspectTable(ctx context.Context, q inspect.Querier, name string) (*core.Table, error) {
	t := &core.Table{Name: name}

	if err := introspectColumns(ctx, q, t); err != nil {
		return nil, err
	}
	if err := introspectIndexes(ctx, q, t); err != nil {
		return nil, err
	}
	if err := introspectForeignKeys(ctx, q, t); err != nil {
		return nil, err
	}
	return t, nil
}

// quotePragmaArg quotes the table name for interpolation into a PRAGMA call;
// PRAGMAs do not accept bound parameters.
func quotePragmaArg(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func introspectColumns(ctx context.Context, q inspect.Querier, t *core.Table) error {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quotePragmaArg(t.Name)))
	if err != nil {
		return err
	}
	defer rows.Close()

	type pkCol struct {
		name string
		rank int
	}
	var pks []pkCol

	for rows.Next() {
		var cid, notNull, pk int
		var name, rawType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &rawType, &notNull, &dflt, &pk); err != nil {
			return err
		}

		// table_info reports notnull=0 for "INTEGER PRIMARY KEY" columns
		// even though they can never hold NULL; primary-key membership
		// overrides the flag.
		col := &core.Column{
			Name:     name,
			Type:     core.NormalizeType(rawType),
			Nullable: notNull == 0 && pk == 0,
		}
		if dflt.Valid {
			col.DefaultValue = &dflt.String
		}
		t.Columns = append(t.Columns, col)

		if pk > 0 {
			pks = append(pks, pkCol{name: name, rank: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// table_info reports pk as a 1-based position within the primary key.
	t.PrimaryKey = make([]string, len(pks))
	for _, p := range pks {
		if p.rank >= 1 && p.rank <= len(pks) {
			t.PrimaryKey[p.rank-1] = p.name
		}
	}
	return nil
}

func introspectIndexes(ctx context.Context, q inspect.Querier, t *core.Table) error {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quotePragmaArg(t.Name)))
	if err != nil {
		return err
	}

	type idxMeta struct {
		name   string
		unique bool
	}
	var metas []idxMeta
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return err
		}
		// Skip the implicit indexes SQLite creates for PRIMARY KEY and
		// UNIQUE column constraints.
		if origin != "c" || strings.HasPrefix(name, "sqlite_autoindex") {
			continue
		}
		metas = append(metas, idxMeta{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, m := range metas {
		cols, err := indexColumns(ctx, q, m.name)
		if err != nil {
			return err
		}
		t.Indexes = append(t.Indexes, &core.Index{Name: m.name, Columns: cols, Unique: m.unique})
	}
	return nil
}

func indexColumns(ctx context.Context, q inspect.Querier, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quotePragmaArg(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

func introspectForeignKeys(ctx context.Context, q inspect.Querier, t *core.Table) error {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quotePragmaArg(t.Name)))
	if err != nil {
		return err
	}
	defer rows.Close()

	// Rows of one FK share an id; seq orders its columns.
	byID := make(map[int]*core.ForeignKey)
	var order []int
	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		fk, ok := byID[id]
		if !ok {
			fk = &core.ForeignKey{RefTable: refTable, OnDelete: normalizeRefAction(onDelete)}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		fk.RefColumns = append(fk.RefColumns, to)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range order {
		t.ForeignKeys = append(t.ForeignKeys, byID[id])
	}
	return nil
}

func normalizeRefAction(action string) core.RefAction {
	switch strings.ToUpper(action) {
	case "CASCADE":
		return core.RefActionCascade
	case "SET NULL":
		return core.RefActionSetNull
	case "RESTRICT":
		return core.RefActionRestrict
	default:
		return core.RefActionNone
	}
}

func (i *inspector) TableExists(ctx context.Context, q inspect.Querier, table string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (i *inspector) ColumnExists(ctx context.Context, q inspect.Querier, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quotePragmaArg(table)))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notNull, pk int
		var name, rawType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &rawType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (i *inspector) IndexExists(ctx context.Context, q inspect.Querier, table, index string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ? AND tbl_name = ?`,
		index, table).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
