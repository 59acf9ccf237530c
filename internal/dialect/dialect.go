// Package dialect provides the capability table and SQL renderers for the
// supported backends. The capability table is the single place that records
// which schema changes a dialect can do inline and which require the
// rename/recreate/copy/drop rebuild, so the differ's decision logic stays
// explicit and testable instead of being scattered through control flow.
package dialect

import (
	"fmt"

	"screc/internal/core"
)

// Capabilities is a static description of what a backend can do inline.
type Capabilities struct {
	// TransactionalDDL reports whether DDL participates in transactions.
	// When true the executor runs the whole plan in one transaction and a
	// failure rolls everything back; when false DDL auto-commits per
	// statement and a failure leaves the run partial.
	TransactionalDDL bool

	// InlineAddColumn reports whether ADD COLUMN works for nullable or
	// defaulted columns without rebuilding the table.
	InlineAddColumn bool

	// InlineAddNotNullNoDefault reports whether a NOT NULL column without a
	// default can be added to a populated table. No supported backend can.
	InlineAddNotNullNoDefault bool

	// InlineAddVolatileDefault reports whether ADD COLUMN accepts a
	// non-constant default such as CURRENT_TIMESTAMP. SQLite rejects it.
	InlineAddVolatileDefault bool

	// InlineAddUnique reports whether ADD COLUMN accepts a UNIQUE
	// constraint. SQLite rejects it; the column must arrive via rebuild.
	InlineAddUnique bool

	// InlineDropColumn reports whether DROP COLUMN works in place.
	// Changing an existing column's type or constraints is never inline on
	// any supported backend; those changes go through the rebuild.
	InlineDropColumn bool

	// DefaultFromColumn reports whether ADD COLUMN can populate the new
	// column from another column in the same statement. No supported
	// backend can, which is why backfill is a separate UPDATE step.
	DefaultFromColumn bool
}

// CapabilitiesFor returns the capability table entry for the given dialect.
func CapabilitiesFor(d core.Dialect) (Capabilities, error) {
	switch d {
	case core.DialectSQLite:
		// SQLite wraps DDL in transactions but cannot modify columns in
		// place; DROP COLUMN needs 3.35+.
		return Capabilities{
			TransactionalDDL: true,
			InlineAddColumn:  true,
			InlineDropColumn: true,
		}, nil
	case core.DialectMySQL:
		// MySQL DDL causes implicit commits, but ALTER TABLE covers most
		// in-place changes.
		return Capabilities{
			InlineAddColumn:          true,
			InlineAddVolatileDefault: true,
			InlineAddUnique:          true,
			InlineDropColumn:         true,
		}, nil
	default:
		return Capabilities{}, fmt.Errorf("unsupported dialect %q", d)
	}
}

// Renderer turns dialect-neutral schema elements into concrete SQL. One
// implementation per backend; all statements the executor runs come through
// here, never from string concatenation at call sites.
type Renderer interface {
	Name() core.Dialect
	QuoteIdentifier(name string) string
	QuoteString(value string) string

	// TypeName maps a logical type to the dialect's column type spelling.
	TypeName(t core.Type) string

	// FormatValue renders a default-value expression: keywords pass
	// through, numbers stay bare, everything else is quoted.
	FormatValue(v string) string

	ColumnDefinition(c *core.Column) string
	CreateTable(t *core.Table) string
	CreateIndex(table string, idx *core.Index) string
	AddColumn(table string, c *core.Column) string
	RenameTable(oldName, newName string) string
	DropTable(name string) string
	DropColumn(table, column string) string

	// InsertSelect renders the explicit column projection used by the
	// rebuild pattern: INSERT INTO table (cols...) SELECT exprs... FROM
	// from. Column names are raw and quoted here; exprs pass through
	// verbatim. The projection is always explicit, never SELECT *.
	InsertSelect(table, from string, columns, exprs []string) string

	// BackfillUpdate renders UPDATE table SET column = sourceExpr WHERE
	// column IS NULL.
	BackfillUpdate(table, column, sourceExpr string) string
}

var registry = map[core.Dialect]func() Renderer{}

// Register adds a renderer constructor for the given dialect. Called from
// the renderer packages' init functions.
func Register(d core.Dialect, ctor func() Renderer) {
	registry[d] = ctor
}

// NewRenderer returns the renderer registered for the given dialect.
func NewRenderer(d core.Dialect) (Renderer, error) {
	ctor, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("no renderer registered for dialect %q", d)
	}
	return ctor(), nil
}
