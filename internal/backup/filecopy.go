package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileCopy backs up a file-based database (SQLite) by copying the database
// file into Dir with a timestamped suffix. The copy is fsynced before the
// provider returns so a successful call means the artifact is durable.
type FileCopy struct {
	// Dir receives the backup files. Empty means alongside the original.
	Dir string
}

// NewFileCopy creates a file-copy provider writing into dir.
func NewFileCopy(dir string) *FileCopy {
	return &FileCopy{Dir: dir}
}

func (f *FileCopy) CreateBackup(ctx context.Context, target string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	defer src.Close()

	now := time.Now()
	dir := f.Dir
	if dir == "" {
		dir = filepath.Dir(target)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	dest := filepath.Join(dir, fmt.Sprintf("%s.%s.bak", filepath.Base(target), now.Format("20060102-150405")))
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return nil, fmt.Errorf("copy database file: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return nil, fmt.Errorf("sync backup file: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close backup file: %w", err)
	}

	return &Handle{Path: dest, CreatedAt: now}, nil
}
