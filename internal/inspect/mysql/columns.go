package mysql

import (
	"context"
	"database/sql"
	"strings"

	"screc/internal/core"
	"screc/internal/inspect"
)

func introspectColumns(ctx context.Context, q inspect.Querier, t *core.Table) error {
	rows, err := q.QueryContext(ctx, `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.column_key
		FROM information_schema.columns c
		WHERE c.table_schema = DATABASE() AND c.table_name = ?
		ORDER BY c.ordinal_position
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, colType, nullable, colKey sql.NullString
		var defaultVal sql.NullString
		if err := rows.Scan(&name, &colType, &nullable, &defaultVal, &colKey); err != nil {
			return err
		}

		col := &core.Column{
			Name:     name.String,
			Type:     core.NormalizeType(colType.String),
			Nullable: strings.EqualFold(nullable.String, "YES"),
			Unique:   colKey.String == "UNI",
		}
		if defaultVal.Valid {
			col.DefaultValue = &defaultVal.String
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return introspectPrimaryKey(ctx, q, t)
}

func introspectPrimaryKey(ctx context.Context, q inspect.Querier, t *core.Table) error {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		t.PrimaryKey = append(t.PrimaryKey, name)
	}
	return rows.Err()
}
