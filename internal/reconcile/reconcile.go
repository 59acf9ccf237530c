// Package reconcile wires the inspector, differ, and executor into the
// single entry point callers use: give it a declared schema and a live
// connection, get back a plan or an applied result. The pipeline is
// validate, connect, introspect, diff, gate destructive requests, execute.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"screc/internal/backup"
	"screc/internal/core"
	"screc/internal/dialect"
	"screc/internal/exec"
	"screc/internal/inspect"
	"screc/internal/logging"
	"screc/internal/plan"
)

// DropRequest is an explicit caller request to drop a table, or a single
// column when Column is set. Drops never come from the diff itself.
type DropRequest struct {
	Table  string
	Column string
}

// Options configures a Reconciler.
type Options struct {
	// DB is the live database connection. Required.
	DB *sql.DB

	// Dialect selects the capability table, renderer, and inspector.
	Dialect core.Dialect

	// AllowDestructive must be set for any DropRequest to be honored.
	AllowDestructive bool

	// Drops are explicit drop requests to append after the diff.
	Drops []DropRequest

	// BackupProvider creates the pre-migration backup when the plan carries
	// destructive steps. Optional for purely additive plans.
	BackupProvider backup.Provider

	// BackupTarget identifies what the provider copies (file path or schema
	// name).
	BackupTarget string

	// Logger receives per-step events. Nil means discard.
	Logger logging.Logger
}

// Reconciler drives one database toward a declared schema.
type Reconciler struct {
	opts      Options
	caps      dialect.Capabilities
	renderer  dialect.Renderer
	inspector inspect.Inspector
}

// New resolves the dialect's capability entry, renderer, and inspector.
func New(opts Options) (*Reconciler, error) {
	if opts.DB == nil {
		return nil, errors.New("reconcile: DB is required")
	}
	caps, err := dialect.CapabilitiesFor(opts.Dialect)
	if err != nil {
		return nil, err
	}
	renderer, err := dialect.NewRenderer(opts.Dialect)
	if err != nil {
		return nil, err
	}
	inspector, err := inspect.NewInspector(opts.Dialect)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Reconciler{
		opts:      opts,
		caps:      caps,
		renderer:  renderer,
		inspector: inspector,
	}, nil
}

// Renderer exposes the resolved renderer, for output formatting.
func (r *Reconciler) Renderer() dialect.Renderer { return r.renderer }

// Capabilities exposes the resolved capability entry.
func (r *Reconciler) Capabilities() dialect.Capabilities { return r.caps }

// Plan validates the declaration, introspects the live schema, and computes
// the migration plan without executing anything. An unreachable database is a
// ConnectionError; a failed metadata query is an IntrospectionError and no
// plan is produced from partial knowledge.
func (r *Reconciler) Plan(ctx context.Context, declared *core.Schema) (*plan.Plan, error) {
	if err := core.Validate(declared); err != nil {
		return nil, err
	}
	if len(r.opts.Drops) > 0 && !r.opts.AllowDestructive {
		return nil, &core.PlanningError{Reason: "drop requests require the destructive opt-in"}
	}

	if err := r.opts.DB.PingContext(ctx); err != nil {
		return nil, &core.ConnectionError{Err: err}
	}

	snapshot, err := r.inspector.Inspect(ctx, r.opts.DB)
	if err != nil {
		return nil, err
	}

	p, err := plan.Diff(declared, snapshot, r.caps)
	if err != nil {
		return nil, err
	}

	drops, err := r.dropSteps(snapshot)
	if err != nil {
		return nil, err
	}
	if len(drops) > 0 {
		p.Append(drops...)
	}
	return p, nil
}

// Reconcile drives the database to the declared schema in one call. It is
// Apply without the plan in the return; callers that print the plan first
// use Plan and Apply directly.
func (r *Reconciler) Reconcile(ctx context.Context, declared *core.Schema) (*exec.Result, error) {
	_, result, err := r.Apply(ctx, declared)
	return result, err
}

// Apply computes the plan and executes it. The returned result is non-nil
// whenever execution started, so a partial failure still reports which steps
// were applied and where the backup lives.
func (r *Reconciler) Apply(ctx context.Context, declared *core.Schema) (*plan.Plan, *exec.Result, error) {
	p, err := r.Plan(ctx, declared)
	if err != nil {
		return nil, nil, err
	}

	executor, err := exec.New(exec.Options{
		DB:           r.opts.DB,
		Renderer:     r.renderer,
		Inspector:    r.inspector,
		Capabilities: r.caps,
		Provider:     r.opts.BackupProvider,
		BackupTarget: r.opts.BackupTarget,
		Logger:       r.opts.Logger,
	})
	if err != nil {
		return p, nil, err
	}

	result, execErr := executor.Execute(ctx, p)
	return p, result, execErr
}

// dropSteps turns drop requests into plan steps. Requests for tables or
// columns that are already gone are kept; the executor's existence probe
// skips them, which keeps repeated runs clean.
func (r *Reconciler) dropSteps(snapshot *core.Snapshot) ([]plan.Step, error) {
	var steps []plan.Step
	for _, d := range r.opts.Drops {
		if d.Table == "" {
			return nil, &core.PlanningError{Reason: "drop request with empty table name"}
		}
		if d.Column == "" {
			steps = append(steps, plan.DropTableStep(d.Table))
			continue
		}
		if !r.caps.InlineDropColumn {
			return nil, &core.PlanningError{
				Table:  d.Table,
				Column: d.Column,
				Reason: "dialect cannot drop a column in place",
			}
		}
		if t := snapshot.FindTable(d.Table); t != nil {
			if pk := t.PrimaryKey; containsFold(pk, d.Column) {
				return nil, &core.PlanningError{
					Table:  d.Table,
					Column: d.Column,
					Reason: "cannot drop a primary key column",
				}
			}
		}
		steps = append(steps, plan.DropColumnStep(d.Table, d.Column))
	}
	return steps, nil
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Preflight runs the MySQL statement analyzer over the rendered plan. It is
// advisory output for operators; SQLite plans return nil since the whole run
// is one transaction there.
func (r *Reconciler) Preflight(p *plan.Plan) *exec.Preflight {
	if r.opts.Dialect != core.DialectMySQL || p.IsEmpty() {
		return nil
	}
	statements := p.Rendered(r.renderer)
	if len(statements) == 0 {
		return nil
	}
	return exec.NewAnalyzer().Analyze(statements)
}
