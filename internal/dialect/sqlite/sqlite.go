// Package sqlite renders SQL for SQLite-like backends. SQLite keeps the
// declared column type text verbatim, so the logical type names are emitted
// as-is and survive an introspection round trip.
package sqlite

import (
	"fmt"
	"strings"

	"screc/internal/core"
	"screc/internal/dialect"
)

func init() {
	dialect.Register(core.DialectSQLite, New)
}

// Renderer implements dialect.Renderer for SQLite.
type Renderer struct{}

// New creates a SQLite renderer.
func New() dialect.Renderer {
	return &Renderer{}
}

func (r *Renderer) Name() core.Dialect { return core.DialectSQLite }

// QuoteIdentifier quotes an identifier with double quotes, doubling any
// embedded quote characters.
func (r *Renderer) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString quotes a string literal with single quotes.
func (r *Renderer) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (r *Renderer) TypeName(t core.Type) string {
	// SQLite accepts arbitrary type names and applies affinity rules, so
	// the logical spelling is used directly.
	return t.String()
}

func (r *Renderer) FormatValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "''"
	}
	upper := strings.ToUpper(v)
	switch upper {
	case "NULL", "CURRENT_TIMESTAMP", "TRUE", "FALSE":
		return upper
	}
	if isNumeric(v) {
		return v
	}
	return r.QuoteString(v)
}

func isNumeric(v string) bool {
	dot := false
	for i, ch := range v {
		switch {
		case ch >= '0' && ch <= '9':
		case ch == '-' && i == 0:
		case ch == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return v != "" && v != "-" && v != "."
}

func (r *Renderer) ColumnDefinition(c *core.Column) string {
	parts := []string{r.QuoteIdentifier(c.Name), r.TypeName(c.Type)}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if c.DefaultValue != nil {
		parts = append(parts, "DEFAULT", r.FormatValue(*c.DefaultValue))
	}
	return strings.Join(parts, " ")
}

func (r *Renderer) CreateTable(t *core.Table) string {
	var defs []string
	for _, c := range t.Columns {
		defs = append(defs, "  "+r.ColumnDefinition(c))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "  PRIMARY KEY "+r.columnList(t.PrimaryKey))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, "  "+r.foreignKeyClause(fk))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", r.QuoteIdentifier(t.Name), strings.Join(defs, ",\n"))
}

func (r *Renderer) foreignKeyClause(fk *core.ForeignKey) string {
	clause := fmt.Sprintf("FOREIGN KEY %s REFERENCES %s %s",
		r.columnList(fk.Columns), r.QuoteIdentifier(fk.RefTable), r.columnList(fk.RefColumns))
	if fk.OnDelete != core.RefActionNone {
		clause += " ON DELETE " + string(fk.OnDelete)
	}
	return clause
}

func (r *Renderer) CreateIndex(table string, idx *core.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s %s",
		unique, r.QuoteIdentifier(idx.Name), r.QuoteIdentifier(table), r.columnList(idx.Columns))
}

func (r *Renderer) AddColumn(table string, c *core.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", r.QuoteIdentifier(table), r.ColumnDefinition(c))
}

func (r *Renderer) RenameTable(oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", r.QuoteIdentifier(oldName), r.QuoteIdentifier(newName))
}

func (r *Renderer) DropTable(name string) string {
	return "DROP TABLE " + r.QuoteIdentifier(name)
}

func (r *Renderer) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", r.QuoteIdentifier(table), r.QuoteIdentifier(column))
}

func (r *Renderer) InsertSelect(table, from string, columns, exprs []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = r.QuoteIdentifier(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		r.QuoteIdentifier(table), strings.Join(quoted, ", "),
		strings.Join(exprs, ", "), r.QuoteIdentifier(from))
}

func (r *Renderer) BackfillUpdate(table, column, sourceExpr string) string {
	qcol := r.QuoteIdentifier(column)
	return fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL",
		r.QuoteIdentifier(table), qcol, sourceExpr, qcol)
}

func (r *Renderer) columnList(cols []string) string {
	quoted := make([]string, 0, len(cols))
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		quoted = append(quoted, r.QuoteIdentifier(c))
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
