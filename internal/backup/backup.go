// Package backup provides restorable pre-mutation snapshots. The executor
// calls a Provider before the first destructive statement of a run; a
// successful call guarantees a restorable point-in-time copy exists before
// it returns.
package backup

import (
	"context"
	"time"
)

// Handle identifies a completed backup artifact.
type Handle struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// Provider creates a restorable snapshot of the database identified by
// target. For a file-based engine target is the database file path; for a
// server-based engine it is the database name.
type Provider interface {
	CreateBackup(ctx context.Context, target string) (*Handle, error)
}
