// Package exec runs migration plans against a live database. The executor
// renders every step through the dialect renderer, re-checks existence before
// each step so re-running an interrupted plan is safe, and takes a backup
// before the first mutating statement whenever the plan carries destructive
// steps. On transactional backends a failure rolls the whole run back; on
// auto-committing backends it stops and reports which steps were applied and
// which were not.
package exec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"screc/internal/backup"
	"screc/internal/core"
	"screc/internal/dialect"
	"screc/internal/inspect"
	"screc/internal/logging"
	"screc/internal/plan"
)

// Status summarizes the outcome of a whole run.
type Status string

const (
	// StatusNoOp means the plan was empty; nothing was executed.
	StatusNoOp Status = "no-op"
	// StatusSuccess means every step applied or was already satisfied.
	StatusSuccess Status = "success"
	// StatusRolledBack means a step failed and the transaction undid every
	// prior step. The database is unchanged.
	StatusRolledBack Status = "rolled-back"
	// StatusPartial means a step failed on an auto-committing backend. Steps
	// before the failure are committed; steps after it were not attempted.
	StatusPartial Status = "partial"
	// StatusAborted means the run stopped before any mutation, typically
	// because a required backup could not be created.
	StatusAborted Status = "aborted"
)

// StepStatus is the per-step outcome.
type StepStatus string

const (
	StepApplied   StepStatus = "applied"
	StepSkipped   StepStatus = "skipped-already-satisfied"
	StepFailed    StepStatus = "failed"
	StepUnapplied StepStatus = "pending-unapplied"
)

// StepResult records what happened to one plan step.
type StepResult struct {
	Index      int           `json:"index"`
	Kind       plan.StepKind `json:"kind"`
	Table      string        `json:"table,omitempty"`
	Status     StepStatus    `json:"status"`
	Statements []string      `json:"statements,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Result is the full outcome of an Execute call. Backup is set when a backup
// was taken, whatever happened afterwards, so a partial run always reports
// where the pre-migration copy lives.
type Result struct {
	Status Status         `json:"status"`
	Steps  []StepResult   `json:"steps"`
	Backup *backup.Handle `json:"backup,omitempty"`
}

// Applied counts steps that executed a statement.
func (r *Result) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepApplied {
			n++
		}
	}
	return n
}

// Skipped counts steps that were already satisfied.
func (r *Result) Skipped() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepSkipped {
			n++
		}
	}
	return n
}

// Executor applies plans to one database connection.
type Executor struct {
	db        *sql.DB
	renderer  dialect.Renderer
	inspector inspect.Inspector
	caps      dialect.Capabilities
	provider  backup.Provider
	target    string
	logger    logging.Logger
}

// Options configures an Executor. Provider may be nil when the caller knows
// the plan is non-destructive; Execute aborts if a destructive plan arrives
// without one. BackupTarget identifies what the provider should copy, for a
// file backend the database path and for a server backend the DSN's schema.
type Options struct {
	DB           *sql.DB
	Renderer     dialect.Renderer
	Inspector    inspect.Inspector
	Capabilities dialect.Capabilities
	Provider     backup.Provider
	BackupTarget string
	Logger       logging.Logger
}

// New creates an executor. DB, Renderer, and Inspector are required.
func New(opts Options) (*Executor, error) {
	if opts.DB == nil || opts.Renderer == nil || opts.Inspector == nil {
		return nil, errors.New("exec: DB, Renderer, and Inspector are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{
		db:        opts.DB,
		renderer:  opts.Renderer,
		inspector: opts.Inspector,
		caps:      opts.Capabilities,
		provider:  opts.Provider,
		target:    opts.BackupTarget,
		logger:    logger,
	}, nil
}

// execer is the write surface shared by *sql.DB and *sql.Tx.
type execer interface {
	inspect.Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Execute runs the plan in order. The returned Result is non-nil even on
// error; its Steps record exactly how far the run got.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (*Result, error) {
	if p.IsEmpty() {
		e.logger.Log(logging.LevelInfo, "", "", "plan is empty, nothing to do")
		return &Result{Status: StatusNoOp}, nil
	}

	result := &Result{Status: StatusSuccess}

	// The backup marker sits at the plan front; resolve it before opening
	// any transaction so an aborted run leaves zero DDL behind.
	steps := p.Steps
	if len(steps) > 0 && steps[0].Kind == plan.StepRequireBackup {
		handle, err := e.takeBackup(ctx)
		if err != nil {
			result.Status = StatusAborted
			result.Steps = append(result.Steps, StepResult{
				Index:  0,
				Kind:   plan.StepRequireBackup,
				Status: StepFailed,
				Error:  err.Error(),
			})
			markUnapplied(result, steps[1:], 1)
			return result, err
		}
		result.Backup = handle
		result.Steps = append(result.Steps, StepResult{
			Index:  0,
			Kind:   plan.StepRequireBackup,
			Status: StepApplied,
		})
		steps = steps[1:]
		if handle != nil {
			e.logger.Log(logging.LevelInfo, string(plan.StepRequireBackup), "",
				fmt.Sprintf("backup created at %s", handle.Path))
		}
	}

	if e.caps.TransactionalDDL {
		return e.executeTransactional(ctx, steps, result)
	}
	return e.executeAutoCommit(ctx, steps, result)
}

func (e *Executor) takeBackup(ctx context.Context) (*backup.Handle, error) {
	if e.provider == nil {
		return nil, &core.BackupError{Target: e.target, Err: errors.New("destructive plan but no backup provider configured")}
	}
	handle, err := e.provider.CreateBackup(ctx, e.target)
	if err != nil {
		var be *core.BackupError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, &core.BackupError{Target: e.target, Err: err}
	}
	return handle, nil
}

func (e *Executor) executeTransactional(ctx context.Context, steps []plan.Step, result *Result) (*Result, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		result.Status = StatusAborted
		markUnapplied(result, steps, len(result.Steps))
		return result, &core.ExecutionError{Err: fmt.Errorf("begin transaction: %w", err)}
	}

	for i, step := range steps {
		idx := len(result.Steps)
		sr, stepErr := e.runStep(ctx, tx, idx, step)
		result.Steps = append(result.Steps, sr)
		if stepErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				stepErr = fmt.Errorf("%w; rollback also failed: %v", stepErr, rbErr)
			}
			result.Status = StatusRolledBack
			markRolledBack(result)
			markUnapplied(result, steps[i+1:], idx+1)
			return result, &core.ExecutionError{
				StepIndex: idx,
				Table:     step.Table,
				Statement: failedStatement(sr),
				Err:       stepErr,
			}
		}
	}

	if err := tx.Commit(); err != nil {
		result.Status = StatusRolledBack
		markRolledBack(result)
		return result, &core.ExecutionError{Err: fmt.Errorf("commit: %w", err)}
	}
	return result, nil
}

func (e *Executor) executeAutoCommit(ctx context.Context, steps []plan.Step, result *Result) (*Result, error) {
	for i, step := range steps {
		idx := len(result.Steps)
		sr, stepErr := e.runStep(ctx, e.db, idx, step)
		result.Steps = append(result.Steps, sr)
		if stepErr != nil {
			result.Status = StatusPartial
			markUnapplied(result, steps[i+1:], idx+1)
			return result, &core.ExecutionError{
				StepIndex: idx,
				Table:     step.Table,
				Statement: failedStatement(sr),
				Err:       stepErr,
			}
		}
	}
	return result, nil
}

// runStep re-checks whether the step is already satisfied, renders it, and
// executes the rendered statements in order.
func (e *Executor) runStep(ctx context.Context, db execer, idx int, step plan.Step) (StepResult, error) {
	sr := StepResult{Index: idx, Kind: step.Kind, Table: step.Table}
	start := time.Now()

	satisfied, err := e.alreadySatisfied(ctx, db, step)
	if err != nil {
		sr.Status = StepFailed
		sr.Error = err.Error()
		sr.Duration = time.Since(start)
		return sr, err
	}
	if satisfied {
		sr.Status = StepSkipped
		sr.Duration = time.Since(start)
		e.logger.Log(logging.LevelDebug, string(step.Kind), step.Table, "already satisfied, skipping")
		return sr, nil
	}

	statements, err := e.renderStep(ctx, db, step)
	if err != nil {
		sr.Status = StepFailed
		sr.Error = err.Error()
		sr.Duration = time.Since(start)
		return sr, err
	}
	sr.Statements = statements

	for i, stmt := range statements {
		if _, execErr := db.ExecContext(ctx, stmt); execErr != nil {
			// Keep only the attempted prefix; the last entry is the
			// statement that failed.
			sr.Statements = statements[:i+1]
			sr.Status = StepFailed
			sr.Error = execErr.Error()
			sr.Duration = time.Since(start)
			e.logger.Log(logging.LevelError, string(step.Kind), step.Table,
				fmt.Sprintf("failed: %s: %v", truncate(stmt), execErr))
			return sr, fmt.Errorf("%s: %w", truncate(stmt), execErr)
		}
	}

	sr.Status = StepApplied
	sr.Duration = time.Since(start)
	e.logger.Log(logging.LevelInfo, string(step.Kind), step.Table,
		fmt.Sprintf("applied in %s", sr.Duration.Round(time.Millisecond)))
	return sr, nil
}

// alreadySatisfied probes the live schema so the same plan can run twice
// without error. Backfills and rebuilds always run; the backfill's WHERE
// clause makes it a no-op on the second pass.
func (e *Executor) alreadySatisfied(ctx context.Context, q inspect.Querier, step plan.Step) (bool, error) {
	switch step.Kind {
	case plan.StepCreateTable:
		return e.inspector.TableExists(ctx, q, step.Table)
	case plan.StepAddColumn:
		return e.inspector.ColumnExists(ctx, q, step.Table, step.Column.Name)
	case plan.StepCreateIndex:
		return e.inspector.IndexExists(ctx, q, step.Table, step.Index.Name)
	case plan.StepDropTable:
		exists, err := e.inspector.TableExists(ctx, q, step.Table)
		return err == nil && !exists, err
	case plan.StepDropColumn:
		exists, err := e.inspector.ColumnExists(ctx, q, step.Table, step.ColumnName)
		return err == nil && !exists, err
	default:
		return false, nil
	}
}

func (e *Executor) renderStep(ctx context.Context, q inspect.Querier, step plan.Step) ([]string, error) {
	r := e.renderer
	switch step.Kind {
	case plan.StepCreateTable:
		return []string{r.CreateTable(step.TableDef)}, nil
	case plan.StepAddColumn:
		return []string{r.AddColumn(step.Table, step.Column)}, nil
	case plan.StepCreateIndex:
		return []string{r.CreateIndex(step.Table, step.Index)}, nil
	case plan.StepBackfillColumn:
		src := r.QuoteIdentifier(step.SourceColumn)
		return []string{r.BackfillUpdate(step.Table, step.ColumnName, src)}, nil
	case plan.StepDropTable:
		return []string{r.DropTable(step.Table)}, nil
	case plan.StepDropColumn:
		return []string{r.DropColumn(step.Table, step.ColumnName)}, nil
	case plan.StepRebuildTable:
		return e.renderRebuild(ctx, q, step)
	default:
		return nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// renderRebuild emits the rebuild sequence: rename the live table aside,
// create the target definition, copy rows through the explicit projection,
// drop the renamed original. The aside name is probed so a crashed earlier
// rebuild never collides.
func (e *Executor) renderRebuild(ctx context.Context, q inspect.Querier, step plan.Step) ([]string, error) {
	rb := step.Rebuild
	if rb == nil || rb.Table == nil {
		return nil, fmt.Errorf("rebuild step for %q has no specification", step.Table)
	}

	aside := rb.AsideName()
	for i := 2; ; i++ {
		exists, err := e.inspector.TableExists(ctx, q, aside)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
		aside = fmt.Sprintf("%s_old%d", rb.Table.Name, i)
	}

	return plan.RenderRebuild(rb, aside, e.renderer), nil
}

func markUnapplied(result *Result, remaining []plan.Step, startIndex int) {
	for i, s := range remaining {
		result.Steps = append(result.Steps, StepResult{
			Index:  startIndex + i,
			Kind:   s.Kind,
			Table:  s.Table,
			Status: StepUnapplied,
		})
	}
}

// markRolledBack rewrites applied steps as unapplied after a rollback, since
// the transaction undid them.
func markRolledBack(result *Result) {
	for i := range result.Steps {
		if result.Steps[i].Status == StepApplied && result.Steps[i].Kind != plan.StepRequireBackup {
			result.Steps[i].Status = StepUnapplied
		}
	}
}

func failedStatement(sr StepResult) string {
	if len(sr.Statements) == 0 {
		return ""
	}
	return sr.Statements[len(sr.Statements)-1]
}

func truncate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if len(stmt) > 120 {
		return stmt[:117] + "..."
	}
	return stmt
}
