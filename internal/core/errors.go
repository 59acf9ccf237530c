package core

import "fmt"

// ConnectionError means the live database is unreachable. No plan is computed.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IntrospectionError means a metadata query failed mid-scan. The inspector
// fails closed: no partial snapshot is ever returned, since a partial snapshot
// would cause the differ to under-migrate.
type IntrospectionError struct {
	Table string
	Err   error
}

func (e *IntrospectionError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("introspection: table %q: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("introspection: %v", e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// PlanningError means the declared schema is internally invalid, or requires
// a change the differ cannot express safely. It is surfaced before any
// mutation.
type PlanningError struct {
	Table  string
	Column string
	Reason string
}

func (e *PlanningError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("planning: table %q column %q: %s", e.Table, e.Column, e.Reason)
	case e.Table != "":
		return fmt.Sprintf("planning: table %q: %s", e.Table, e.Reason)
	default:
		return fmt.Sprintf("planning: %s", e.Reason)
	}
}

// BackupError means a backup could not be created before a destructive plan.
// It is fatal and aborts the run before any mutation.
type BackupError struct {
	Target string
	Err    error
}

func (e *BackupError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("backup of %q: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("backup: %v", e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// ExecutionError means a specific DDL/DML statement failed. It carries enough
// detail (step index, table, rendered statement) to diagnose the failure
// manually; the engine never retries automatically.
type ExecutionError struct {
	StepIndex int
	Table     string
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution: step %d (table %q) failed: %v\n  Statement: %s",
		e.StepIndex, e.Table, e.Err, e.Statement)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
