package plan

import (
	"fmt"
	"strings"

	"screc/internal/dialect"
)

// Render previews the SQL a step will run. Rebuild steps render with the
// default aside name; the executor may pick a different one at run time if
// the name is taken.
func (s Step) Render(r dialect.Renderer) []string {
	switch s.Kind {
	case StepCreateTable:
		return []string{r.CreateTable(s.TableDef)}
	case StepAddColumn:
		return []string{r.AddColumn(s.Table, s.Column)}
	case StepCreateIndex:
		return []string{r.CreateIndex(s.Table, s.Index)}
	case StepBackfillColumn:
		return []string{r.BackfillUpdate(s.Table, s.ColumnName, r.QuoteIdentifier(s.SourceColumn))}
	case StepDropTable:
		return []string{r.DropTable(s.Table)}
	case StepDropColumn:
		return []string{r.DropColumn(s.Table, s.ColumnName)}
	case StepRebuildTable:
		if s.Rebuild == nil || s.Rebuild.Table == nil {
			return nil
		}
		return renderRebuild(s.Rebuild, s.Rebuild.AsideName(), r)
	default:
		return nil
	}
}

// Rendered previews the SQL for the whole plan, in step order. The backup
// marker contributes no SQL.
func (p *Plan) Rendered(r dialect.Renderer) []string {
	var statements []string
	for _, s := range p.Steps {
		statements = append(statements, s.Render(r)...)
	}
	return statements
}

// AsideName is the default name the original table is renamed to during a
// rebuild.
func (rb *Rebuild) AsideName() string {
	return rb.Table.Name + "_old"
}

// RenderRebuild emits the rebuild sequence for a given aside name: rename
// the live table, create the target definition, copy rows through the
// explicit projection, drop the renamed original.
func RenderRebuild(rb *Rebuild, aside string, r dialect.Renderer) []string {
	return renderRebuild(rb, aside, r)
}

func renderRebuild(rb *Rebuild, aside string, r dialect.Renderer) []string {
	if rb == nil || rb.Table == nil {
		return nil
	}
	columns := make([]string, len(rb.Copy))
	exprs := make([]string, len(rb.Copy))
	for i, c := range rb.Copy {
		columns[i] = c.Target
		exprs[i] = c.Expr(r)
	}
	return []string{
		r.RenameTable(rb.Table.Name, aside),
		r.CreateTable(rb.Table),
		r.InsertSelect(rb.Table.Name, aside, columns, exprs),
		r.DropTable(aside),
	}
}

// Expr renders the projection expression for one column of the copy. The
// source column, fallback column, and default literal coalesce in that
// order; with none set the column is filled with NULL.
func (c ColumnCopy) Expr(r dialect.Renderer) string {
	var args []string
	if c.Source != "" {
		args = append(args, r.QuoteIdentifier(c.Source))
	}
	if c.Fallback != "" {
		args = append(args, r.QuoteIdentifier(c.Fallback))
	}
	if c.Default != nil {
		args = append(args, r.FormatValue(*c.Default))
	}
	switch len(args) {
	case 0:
		return "NULL"
	case 1:
		return args[0]
	default:
		return fmt.Sprintf("COALESCE(%s)", strings.Join(args, ", "))
	}
}
