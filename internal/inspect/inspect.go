// Package inspect contains the schema inspector interface. An inspector
// introspects a live database and produces a core.Snapshot of its actual
// schema, normalized to the logical type enum, or an error if the metadata
// queries were unsuccessful. Inspectors fail closed: a mid-scan failure
// returns no snapshot at all, never a partial one.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"screc/internal/core"
)

// Querier is the read-only query surface the inspector needs. Both *sql.DB
// and *sql.Tx satisfy it, so existence probes can run inside the executor's
// transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Inspector produces snapshots and answers point existence probes. All
// queries are read-only.
type Inspector interface {
	Inspect(ctx context.Context, db *sql.DB) (*core.Snapshot, error)

	TableExists(ctx context.Context, q Querier, table string) (bool, error)
	ColumnExists(ctx context.Context, q Querier, table, column string) (bool, error)
	IndexExists(ctx context.Context, q Querier, table, index string) (bool, error)
}

var (
	registry = make(map[core.Dialect]func() Inspector)
	mu       sync.RWMutex
)

// Register adds an inspector constructor for a dialect. Called from the
// inspector packages' init functions.
func Register(dialect core.Dialect, fn func() Inspector) {
	mu.Lock()
	defer mu.Unlock()
	registry[dialect] = fn
}

// NewInspector returns the inspector registered for the given dialect.
func NewInspector(dialect core.Dialect) (Inspector, error) {
	mu.RLock()
	fn, ok := registry[dialect]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported dialect %v", dialect)
	}
	return fn(), nil
}
