package plan

import (
	"fmt"
	"strings"

	"screc/internal/core"
	"screc/internal/dialect"
)

// Diff compares a declared schema against a live snapshot and emits the
// minimal ordered plan that brings the database up to the declaration. The
// differ is additive-only: live tables and columns that are not declared are
// left untouched, never dropped.
//
// Per declared table, in declaration order:
//  1. absent live: CreateTable, then its CreateIndex steps;
//  2. present: per-column capability decision (AddColumn vs RebuildTable),
//     trailing BackfillColumn steps for added columns with a backfill source;
//  3. declared indexes missing by name: CreateIndex.
func Diff(declared *core.Schema, live *core.Snapshot, caps dialect.Capabilities) (*Plan, error) {
	p := &Plan{}

	for _, t := range declared.Tables {
		lt := live.FindTable(t.Name)
		if lt == nil {
			p.Steps = append(p.Steps, Step{Kind: StepCreateTable, Table: t.Name, TableDef: t})
			for _, idx := range t.Indexes {
				p.Steps = append(p.Steps, Step{Kind: StepCreateIndex, Table: t.Name, Index: idx})
			}
			continue
		}

		if err := diffTable(p, t, lt, caps); err != nil {
			return nil, err
		}
	}

	p.ensureBackupMarker()
	return p, nil
}

func diffTable(p *Plan, declared, live *core.Table, caps dialect.Capabilities) error {
	var added []*core.Column
	var rebuildReasons []string

	for _, c := range declared.Columns {
		lc := live.FindColumn(c.Name)
		if lc == nil {
			if canAddInline(c, caps) {
				added = append(added, c)
				continue
			}
			rebuildReasons = append(rebuildReasons,
				fmt.Sprintf("column %q cannot be added in place (%s)", c.Name, inlineAddObstacle(c, caps)))
			continue
		}

		satisfied, reason, err := columnSatisfied(declared.Name, c, lc)
		if err != nil {
			return err
		}
		if !satisfied {
			rebuildReasons = append(rebuildReasons,
				fmt.Sprintf("column %q must change: %s", c.Name, reason))
		}
	}

	rebuilding := len(rebuildReasons) > 0
	if rebuilding {
		rb, err := buildRebuild(declared, live, rebuildReasons)
		if err != nil {
			return err
		}
		p.Steps = append(p.Steps, Step{
			Kind:    StepRebuildTable,
			Table:   declared.Name,
			Rebuild: rb,
			Reason:  strings.Join(rebuildReasons, "; "),
		})
	} else {
		for _, c := range added {
			p.Steps = append(p.Steps, Step{Kind: StepAddColumn, Table: declared.Name, Column: c})
			if c.BackfillFrom != "" && !caps.DefaultFromColumn {
				p.Steps = append(p.Steps, Step{
					Kind:         StepBackfillColumn,
					Table:        declared.Name,
					ColumnName:   c.Name,
					SourceColumn: c.BackfillFrom,
				})
			}
		}
	}

	// A rebuild recreates the table from scratch, dropping every index
	// with it, so all declared indexes are (re)emitted; the executor's
	// existence re-check keeps this idempotent either way.
	for _, idx := range declared.Indexes {
		if rebuilding || live.FindIndex(idx.Name) == nil {
			p.Steps = append(p.Steps, Step{Kind: StepCreateIndex, Table: declared.Name, Index: idx})
		}
	}

	return nil
}

// canAddInline applies the capability decision table for a brand-new column.
func canAddInline(c *core.Column, caps dialect.Capabilities) bool {
	if !caps.InlineAddColumn {
		return false
	}
	if !c.Nullable && c.DefaultValue == nil {
		// A NOT NULL column without a default can only materialize
		// through a rebuild, where the projection supplies its values.
		return caps.InlineAddNotNullNoDefault
	}
	if c.Unique && !caps.InlineAddUnique {
		return false
	}
	if isVolatileDefault(c.DefaultValue) && !caps.InlineAddVolatileDefault {
		return false
	}
	return true
}

func inlineAddObstacle(c *core.Column, caps dialect.Capabilities) string {
	switch {
	case !caps.InlineAddColumn:
		return "dialect does not support ADD COLUMN"
	case !c.Nullable && c.DefaultValue == nil:
		return "NOT NULL without default on a populated table"
	case c.Unique && !caps.InlineAddUnique:
		return "UNIQUE constraint in ADD COLUMN"
	case isVolatileDefault(c.DefaultValue):
		return "non-constant default in ADD COLUMN"
	default:
		return "unsupported inline addition"
	}
}

func isVolatileDefault(v *string) bool {
	return v != nil && core.NormalizeDefault(v) == "CURRENT_TIMESTAMP"
}

// columnSatisfied compares a declared column against its live counterpart.
// A widening change reports unsatisfied (handled by rebuild); a change the
// engine cannot perform without risking data is a PlanningError surfaced
// before any mutation.
func columnSatisfied(table string, declared, live *core.Column) (bool, string, error) {
	if !declared.Type.Equal(live.Type) {
		if narrowed, why := isNarrowing(live.Type, declared.Type); narrowed {
			return false, "", &core.PlanningError{Table: table, Column: declared.Name,
				Reason: fmt.Sprintf("cannot narrow %s to %s: %s", live.Type, declared.Type, why)}
		}
		return false, fmt.Sprintf("type %s -> %s", live.Type, declared.Type), nil
	}

	if declared.Nullable != live.Nullable {
		if !declared.Nullable && declared.DefaultValue == nil && declared.BackfillFrom == "" {
			return false, "", &core.PlanningError{Table: table, Column: declared.Name,
				Reason: "cannot make column NOT NULL without a default or backfill source for existing NULL rows"}
		}
		return false, fmt.Sprintf("nullable %t -> %t", live.Nullable, declared.Nullable), nil
	}

	if core.NormalizeDefault(declared.DefaultValue) != core.NormalizeDefault(live.DefaultValue) {
		return false, fmt.Sprintf("default %q -> %q",
			core.NormalizeDefault(live.DefaultValue), core.NormalizeDefault(declared.DefaultValue)), nil
	}

	return true, "", nil
}

// isNarrowing reports whether changing from into to could truncate or reject
// existing data.
func isNarrowing(from, to core.Type) (bool, string) {
	switch {
	case from.Kind == core.TypeBigInt && to.Kind == core.TypeInteger:
		return true, "existing values may exceed the integer range"
	case from.Kind == core.TypeText && to.Kind == core.TypeVarChar:
		return true, "existing values may exceed the length limit"
	case from.Kind == core.TypeVarChar && to.Kind == core.TypeVarChar && to.Length < from.Length:
		return true, "existing values may exceed the shorter length"
	}
	return false, ""
}

// buildRebuild constructs the full rebuild specification: the target
// definition plus an explicit projection entry for every target column.
func buildRebuild(declared, live *core.Table, reasons []string) (*Rebuild, error) {
	rb := &Rebuild{Table: declared, Reasons: reasons}

	for _, c := range declared.Columns {
		cp := ColumnCopy{Target: c.Name}

		switch {
		case live.FindColumn(c.Name) != nil:
			// Pre-existing column: copy it. When tightening to NOT NULL
			// the backfill source and default fill existing NULL rows.
			cp.Source = c.Name
			if !c.Nullable {
				if c.BackfillFrom != "" && live.FindColumn(c.BackfillFrom) != nil {
					cp.Fallback = c.BackfillFrom
				}
				if c.DefaultValue != nil {
					cp.Default = c.DefaultValue
				}
			}
		case c.BackfillFrom != "" && live.FindColumn(c.BackfillFrom) != nil:
			cp.Source = c.BackfillFrom
			if c.DefaultValue != nil {
				cp.Default = c.DefaultValue
			}
		case c.DefaultValue != nil:
			cp.Default = c.DefaultValue
		case !c.Nullable:
			return nil, &core.PlanningError{Table: declared.Name, Column: c.Name,
				Reason: "new NOT NULL column has no default or backfill source to populate existing rows"}
		}

		rb.Copy = append(rb.Copy, cp)
	}

	return rb, nil
}
