// Package main contains the cli implementation of the reconciler. It uses
// the cobra package for command wiring and viper for flag/env configuration.
package main

import (
	"errors"
	"fmt"
	"os"

	"screc/internal/core"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the engine's error taxonomy to distinct exit codes so
// scripts can tell an unreachable database from a rejected plan.
func exitCode(err error) int {
	var (
		connErr  *core.ConnectionError
		introErr *core.IntrospectionError
		planErr  *core.PlanningError
		bkErr    *core.BackupError
		execErr  *core.ExecutionError
	)
	switch {
	case errors.As(err, &connErr):
		return 2
	case errors.As(err, &introErr):
		return 3
	case errors.As(err, &planErr):
		return 4
	case errors.As(err, &bkErr):
		return 5
	case errors.As(err, &execErr):
		return 6
	default:
		return 1
	}
}
