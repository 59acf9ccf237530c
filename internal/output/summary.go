package output

import (
	"fmt"
	"strings"

	"screc/internal/exec"
	"screc/internal/plan"
)

type summaryFormatter struct{}

// FormatPlan formats a plan as a compact per-kind count.
// Example output:
//
//	Create tables:  2
//	Add columns:    3
//	Rebuilds:       1
func (summaryFormatter) FormatPlan(p *plan.Plan, preflight *exec.Preflight) (string, error) {
	if p.IsEmpty() {
		return "No changes required.\n", nil
	}

	counts := make(map[plan.StepKind]int)
	for _, s := range p.Steps {
		counts[s.Kind]++
	}

	var sb strings.Builder
	sb.WriteString("Plan Summary\n")
	sb.WriteString("============\n\n")

	writeCount(&sb, "Create tables:  ", counts[plan.StepCreateTable])
	writeCount(&sb, "Add columns:    ", counts[plan.StepAddColumn])
	writeCount(&sb, "Create indexes: ", counts[plan.StepCreateIndex])
	writeCount(&sb, "Backfills:      ", counts[plan.StepBackfillColumn])
	writeCount(&sb, "Rebuilds:       ", counts[plan.StepRebuildTable])
	writeCount(&sb, "Drop tables:    ", counts[plan.StepDropTable])
	writeCount(&sb, "Drop columns:   ", counts[plan.StepDropColumn])

	if tables := p.Tables(); len(tables) > 0 {
		fmt.Fprintf(&sb, "\nTables: %s\n", strings.Join(tables, ", "))
	}
	if p.HasDestructive() {
		sb.WriteString("\nDestructive: yes (backup required)\n")
	}
	if preflight != nil && !preflight.IsTransactional {
		sb.WriteString("Transaction-safe: no\n")
	}
	return sb.String(), nil
}

func writeCount(sb *strings.Builder, label string, n int) {
	if n > 0 {
		fmt.Fprintf(sb, "%s%d\n", label, n)
	}
}

// FormatResult formats an execution result as a compact summary.
func (summaryFormatter) FormatResult(res *exec.Result) (string, error) {
	if res == nil || res.Status == exec.StatusNoOp {
		return "Nothing was executed.\n", nil
	}

	var sb strings.Builder
	sb.WriteString("Run Summary\n")
	sb.WriteString("===========\n\n")

	failed, unapplied := 0, 0
	for _, s := range res.Steps {
		switch s.Status {
		case exec.StepFailed:
			failed++
		case exec.StepUnapplied:
			unapplied++
		}
	}

	fmt.Fprintf(&sb, "Status:      %s\n", res.Status)
	fmt.Fprintf(&sb, "Applied:     %d\n", res.Applied())
	fmt.Fprintf(&sb, "Skipped:     %d\n", res.Skipped())
	if failed > 0 {
		fmt.Fprintf(&sb, "Failed:      %d\n", failed)
	}
	if unapplied > 0 {
		fmt.Fprintf(&sb, "Not applied: %d\n", unapplied)
	}
	if res.Backup != nil {
		fmt.Fprintf(&sb, "Backup:      %s\n", res.Backup.Path)
	}
	return sb.String(), nil
}
