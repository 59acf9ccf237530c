package output

import (
	"fmt"
	"strings"
	"time"

	"screc/internal/dialect"
	"screc/internal/exec"
	"screc/internal/plan"
)

type humanFormatter struct {
	renderer dialect.Renderer
}

func (f humanFormatter) FormatPlan(p *plan.Plan, preflight *exec.Preflight) (string, error) {
	if p.IsEmpty() {
		return "Schema is up to date. Nothing to do.\n", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Migration plan (%d steps):\n", len(p.Steps))

	n := 0
	for _, s := range p.Steps {
		n++
		fmt.Fprintf(&sb, "\n%d. %s\n", n, stepLabel(s))
		if s.Reason != "" {
			fmt.Fprintf(&sb, "   reason: %s\n", s.Reason)
		}
		if s.Kind == plan.StepRebuildTable && s.Rebuild != nil {
			for _, r := range s.Rebuild.Reasons {
				fmt.Fprintf(&sb, "   reason: %s\n", r)
			}
		}
		for _, stmt := range s.Render(f.renderer) {
			fmt.Fprintf(&sb, "   %s;\n", stmt)
		}
	}

	writePreflight(&sb, preflight)

	if p.HasDestructive() {
		sb.WriteString("\nPlan contains destructive steps; a backup will be taken before they run.\n")
	}
	return sb.String(), nil
}

func writePreflight(sb *strings.Builder, preflight *exec.Preflight) {
	if preflight == nil {
		return
	}
	if len(preflight.Warnings) > 0 {
		sb.WriteString("\nPreflight warnings:\n")
		for _, w := range preflight.Warnings {
			fmt.Fprintf(sb, "  [%s] %s\n", w.Level, w.Message)
			if w.Statement != "" {
				fmt.Fprintf(sb, "      SQL: %s\n", w.Statement)
			}
		}
	}
	if !preflight.IsTransactional {
		sb.WriteString("\nThis plan is NOT transaction-safe on the target server:\n")
		for _, reason := range preflight.NonTxReasons {
			fmt.Fprintf(sb, "  - %s\n", reason)
		}
	}
}

func (f humanFormatter) FormatResult(res *exec.Result) (string, error) {
	if res == nil {
		return "", nil
	}
	if res.Status == exec.StatusNoOp {
		return "Schema is up to date. Nothing was executed.\n", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run finished: %s\n", res.Status)
	if res.Backup != nil {
		fmt.Fprintf(&sb, "Backup: %s\n", res.Backup.Path)
	}
	sb.WriteString("\n")

	for _, s := range res.Steps {
		fmt.Fprintf(&sb, "%2d. [%s] %s", s.Index+1, statusMark(s.Status), stepResultLabel(s))
		if s.Status == exec.StepApplied && s.Duration > 0 {
			fmt.Fprintf(&sb, " (%s)", s.Duration.Round(time.Millisecond))
		}
		sb.WriteString("\n")
		if s.Error != "" {
			fmt.Fprintf(&sb, "    error: %s\n", s.Error)
		}
	}

	writeRunTrailer(&sb, res)
	return sb.String(), nil
}

// writeRunTrailer spells out what a non-success status means for the
// database, so a partial MySQL run is never mistaken for a clean failure.
func writeRunTrailer(sb *strings.Builder, res *exec.Result) {
	switch res.Status {
	case exec.StatusSuccess:
		fmt.Fprintf(sb, "\n%d applied, %d already satisfied.\n", res.Applied(), res.Skipped())
	case exec.StatusRolledBack:
		sb.WriteString("\nAll changes were rolled back; the database is unchanged.\n")
	case exec.StatusPartial:
		unapplied := 0
		for _, s := range res.Steps {
			if s.Status == exec.StepUnapplied {
				unapplied++
			}
		}
		fmt.Fprintf(sb, "\nPARTIAL: %d steps committed before the failure, %d were not attempted.\n",
			res.Applied(), unapplied)
		sb.WriteString("DDL on this backend auto-commits; rerun after fixing the failure to finish the plan.\n")
		if res.Backup != nil {
			fmt.Fprintf(sb, "A pre-migration backup is at %s.\n", res.Backup.Path)
		}
	case exec.StatusAborted:
		sb.WriteString("\nAborted before any change was made.\n")
	}
}

func statusMark(s exec.StepStatus) string {
	switch s {
	case exec.StepApplied:
		return "applied"
	case exec.StepSkipped:
		return "skipped"
	case exec.StepFailed:
		return "FAILED"
	case exec.StepUnapplied:
		return "not applied"
	default:
		return string(s)
	}
}

func stepResultLabel(s exec.StepResult) string {
	if s.Kind == plan.StepRequireBackup {
		return "backup"
	}
	if s.Table == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s %s", s.Kind, s.Table)
}
