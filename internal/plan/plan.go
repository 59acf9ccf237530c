// Package plan contains the migration step vocabulary and the schema differ.
// A Plan is an ordered sequence of steps computed fresh per reconciliation
// run and discarded afterwards; it carries everything the executor needs and
// nothing dialect-specific beyond the capability decisions already taken.
package plan

import (
	"strings"

	"screc/internal/core"
)

// StepKind identifies the kind of migration step.
type StepKind string

const (
	StepCreateTable    StepKind = "create-table"
	StepAddColumn      StepKind = "add-column"
	StepCreateIndex    StepKind = "create-index"
	StepRebuildTable   StepKind = "rebuild-table"
	StepBackfillColumn StepKind = "backfill-column"
	StepRequireBackup  StepKind = "require-backup"
	StepDropTable      StepKind = "drop-table"
	StepDropColumn     StepKind = "drop-column"
)

// Step is one unit of schema change. Kind selects which of the optional
// fields are meaningful.
type Step struct {
	Kind  StepKind `json:"kind"`
	Table string   `json:"table"`

	// TableDef is the full target definition (CreateTable).
	TableDef *core.Table `json:"tableDef,omitempty"`

	// Column is the column being added (AddColumn).
	Column *core.Column `json:"column,omitempty"`

	// ColumnName names the target column (BackfillColumn, DropColumn).
	ColumnName string `json:"columnName,omitempty"`

	// SourceColumn names the backfill source (BackfillColumn).
	SourceColumn string `json:"sourceColumn,omitempty"`

	// Index is the index being created (CreateIndex).
	Index *core.Index `json:"index,omitempty"`

	// Rebuild carries the rename/recreate/copy/drop specification
	// (RebuildTable).
	Rebuild *Rebuild `json:"rebuild,omitempty"`

	// Reason explains why the differ chose this step, for logs and plan
	// output.
	Reason string `json:"reason,omitempty"`
}

// Rebuild is the specification of the rebuild-table pattern: the table is
// renamed aside, recreated from the full target definition, rows are copied
// through the explicit projection, and the renamed original is dropped.
type Rebuild struct {
	// Table is the full target definition, existing and new columns both.
	Table *core.Table `json:"table"`

	// Copy holds one entry per target column, in target column order. The
	// projection is built here by the differ, never left to SELECT *,
	// because column ordering and count must match the new definition.
	Copy []ColumnCopy `json:"copy"`

	// Reasons lists what forced the rebuild.
	Reasons []string `json:"reasons,omitempty"`
}

// ColumnCopy describes how one target column is populated during the copy.
// Source and Fallback name columns of the old table; Default is a literal or
// keyword expression. The projection coalesces them in that order; with none
// set the column is filled with NULL.
type ColumnCopy struct {
	Target   string  `json:"target"`
	Source   string  `json:"source,omitempty"`
	Fallback string  `json:"fallback,omitempty"`
	Default  *string `json:"default,omitempty"`
}

// Plan is an ordered sequence of migration steps. Ordering invariants: a
// CreateTable step precedes every step referencing its table, and a
// RequireBackup marker precedes every destructive step.
type Plan struct {
	Steps []Step `json:"steps"`
}

// IsEmpty reports whether the plan contains no steps.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Steps) == 0
}

// HasDestructive reports whether the plan contains any step that can lose
// data if the run goes wrong: table rebuilds and explicit drops.
func (p *Plan) HasDestructive() bool {
	if p == nil {
		return false
	}
	for _, s := range p.Steps {
		switch s.Kind {
		case StepRebuildTable, StepDropTable, StepDropColumn:
			return true
		}
	}
	return false
}

// HasDrops reports whether the plan contains explicit drop steps. Drops are
// never inferred from a diff; they gate on the caller's destructive opt-in.
func (p *Plan) HasDrops() bool {
	if p == nil {
		return false
	}
	for _, s := range p.Steps {
		if s.Kind == StepDropTable || s.Kind == StepDropColumn {
			return true
		}
	}
	return false
}

// Tables returns the distinct table names the plan touches, in first-touch
// order.
func (p *Plan) Tables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range p.Steps {
		key := strings.ToLower(s.Table)
		if s.Table == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, s.Table)
	}
	return names
}

// ensureBackupMarker prepends a RequireBackup marker when the plan contains
// destructive steps and no marker yet. The marker sits at the very front:
// the backup must be durable before the first mutating statement, not merely
// before the destructive one.
func (p *Plan) ensureBackupMarker() {
	if !p.HasDestructive() {
		return
	}
	for _, s := range p.Steps {
		if s.Kind == StepRequireBackup {
			return
		}
	}
	p.Steps = append([]Step{{Kind: StepRequireBackup}}, p.Steps...)
}

// DropTableStep builds an explicit drop-table request. Callers append these
// through the reconciler; the differ itself never emits drops.
func DropTableStep(table string) Step {
	return Step{Kind: StepDropTable, Table: table, Reason: "explicitly requested"}
}

// DropColumnStep builds an explicit drop-column request.
func DropColumnStep(table, column string) Step {
	return Step{Kind: StepDropColumn, Table: table, ColumnName: column, Reason: "explicitly requested"}
}

// Append adds extra steps (normally explicit drops) to the plan and restores
// the backup-marker invariant.
func (p *Plan) Append(steps ...Step) {
	p.Steps = append(p.Steps, steps...)
	p.ensureBackupMarker()
}
