// Package output provides formatters for migration plans and execution
// results. It is extendable and for now provides three formats: human, JSON,
// and summary.
package output

import (
	"fmt"
	"strings"

	"screc/internal/dialect"
	"screc/internal/exec"
	"screc/internal/plan"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatHuman   Format = "human"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// Formatter renders plans and execution results for one output format.
type Formatter interface {
	FormatPlan(p *plan.Plan, preflight *exec.Preflight) (string, error)
	FormatResult(res *exec.Result) (string, error)
}

// NewFormatter creates a Formatter for the given format name. An empty name
// defaults to the human format. The renderer is used to show the SQL each
// step will run.
func NewFormatter(name string, r dialect.Renderer) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatHuman:
		return humanFormatter{renderer: r}, nil
	case FormatJSON:
		return jsonFormatter{renderer: r}, nil
	case FormatSummary:
		return summaryFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'human', 'json', or 'summary'", name)
	}
}

func stepLabel(s plan.Step) string {
	switch s.Kind {
	case plan.StepCreateTable:
		return fmt.Sprintf("create table %s", s.Table)
	case plan.StepAddColumn:
		return fmt.Sprintf("add column %s.%s", s.Table, s.Column.Name)
	case plan.StepCreateIndex:
		return fmt.Sprintf("create index %s on %s", s.Index.Name, s.Table)
	case plan.StepBackfillColumn:
		return fmt.Sprintf("backfill %s.%s from %s", s.Table, s.ColumnName, s.SourceColumn)
	case plan.StepRebuildTable:
		return fmt.Sprintf("rebuild table %s", s.Table)
	case plan.StepRequireBackup:
		return "backup before destructive steps"
	case plan.StepDropTable:
		return fmt.Sprintf("drop table %s", s.Table)
	case plan.StepDropColumn:
		return fmt.Sprintf("drop column %s.%s", s.Table, s.ColumnName)
	default:
		return string(s.Kind)
	}
}
