package mysql

import (
	"context"
	"database/sql"
	"strings"

	"screc/internal/core"
	"screc/internal/inspect"
)

func introspectIndexes(ctx context.Context, q inspect.Querier, t *core.Table) error {
	rows, err := q.QueryContext(ctx, `
		SELECT
			index_name,
			non_unique,
			GROUP_CONCAT(column_name ORDER BY seq_in_index SEPARATOR ',')
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		GROUP BY index_name, non_unique
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var indexName, columns sql.NullString
		var nonUnique int
		if err := rows.Scan(&indexName, &nonUnique, &columns); err != nil {
			return err
		}

		// PRIMARY is reported through the primary-key introspection;
		// single-column UNIQUE constraints surface on the column itself.
		if indexName.String == "PRIMARY" {
			continue
		}

		idx := &core.Index{
			Name:    indexName.String,
			Unique:  nonUnique == 0,
			Columns: strings.Split(columns.String, ","),
		}
		if idx.Unique && len(idx.Columns) == 1 && isColumnUniqueConstraint(t, idx) {
			continue
		}
		t.Indexes = append(t.Indexes, idx)
	}

	return rows.Err()
}

// isColumnUniqueConstraint reports whether idx is the backing index MySQL
// creates for a column-level UNIQUE constraint rather than a declared index.
func isColumnUniqueConstraint(t *core.Table, idx *core.Index) bool {
	col := t.FindColumn(idx.Columns[0])
	return col != nil && col.Unique && strings.EqualFold(idx.Name, col.Name)
}

func introspectForeignKeys(ctx context.Context, q inspect.Querier, t *core.Table) error {
	rows, err := q.QueryContext(ctx, `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON kcu.constraint_schema = rc.constraint_schema
			AND kcu.constraint_name = rc.constraint_name
		WHERE kcu.table_schema = DATABASE()
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	byName := make(map[string]*core.ForeignKey)
	var order []string
	for rows.Next() {
		var name, column, refTable, refColumn, deleteRule string
		if err := rows.Scan(&name, &column, &refTable, &refColumn, &deleteRule); err != nil {
			return err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &core.ForeignKey{
				Name:     name,
				RefTable: refTable,
				OnDelete: normalizeRefAction(deleteRule),
			}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, column)
		fk.RefColumns = append(fk.RefColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range order {
		t.ForeignKeys = append(t.ForeignKeys, byName[name])
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
