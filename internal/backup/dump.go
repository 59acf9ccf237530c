package backup

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"screc/internal/core"
	"screc/internal/dialect"
	"screc/internal/inspect"
)

// LogicalDump backs up a server database (MySQL) by writing a logical SQL
// dump: one CREATE TABLE and a stream of INSERT statements per table, in a
// form the same dialect can replay. The dump runs over plain read-only
// queries, so it may proceed concurrently with other readers.
type LogicalDump struct {
	DB        *sql.DB
	Inspector inspect.Inspector
	Renderer  dialect.Renderer

	// Dir receives the dump files.
	Dir string
}

// NewLogicalDump creates a logical-dump provider for the given connection.
func NewLogicalDump(db *sql.DB, inspector inspect.Inspector, renderer dialect.Renderer, dir string) *LogicalDump {
	return &LogicalDump{DB: db, Inspector: inspector, Renderer: renderer, Dir: dir}
}

func (d *LogicalDump) CreateBackup(ctx context.Context, target string) (*Handle, error) {
	snap, err := d.Inspector.Inspect(ctx, d.DB)
	if err != nil {
		return nil, fmt.Errorf("introspect for dump: %w", err)
	}

	now := time.Now()
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(d.Dir, fmt.Sprintf("%s.%s.sql", sanitizeTarget(target), now.Format("20060102-150405")))

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create dump file: %w", err)
	}

	w := bufio.NewWriter(out)
	writeErr := d.writeDump(ctx, w, snap)
	if writeErr == nil {
		writeErr = w.Flush()
	}
	if writeErr == nil {
		writeErr = out.Sync()
	}
	if closeErr := out.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write dump: %w", writeErr)
	}

	return &Handle{Path: path, CreatedAt: now}, nil
}

func (d *LogicalDump) writeDump(ctx context.Context, w *bufio.Writer, snap *core.Snapshot) error {
	fmt.Fprintf(w, "-- logical dump, dialect %s, %s\n", d.Renderer.Name(), time.Now().UTC().Format(time.RFC3339))
	for _, table := range snap.Tables {
		fmt.Fprintf(w, "\n%s;\n", d.Renderer.CreateTable(table))
		if err := d.dumpRows(ctx, w, table); err != nil {
			return fmt.Errorf("table %s: %w", table.Name, err)
		}
	}
	return nil
}

func (d *LogicalDump) dumpRows(ctx context.Context, w *bufio.Writer, table *core.Table) error {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = d.Renderer.QuoteIdentifier(c.Name)
	}
	colList := strings.Join(cols, ", ")

	query := fmt.Sprintf("SELECT %s FROM %s", colList, d.Renderer.QuoteIdentifier(table.Name))
	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	values := make([]any, len(table.Columns))
	ptrs := make([]any, len(table.Columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		lits := make([]string, len(values))
		for i, v := range values {
			lits[i] = d.renderLiteral(v)
		}
		fmt.Fprintf(w, "INSERT INTO %s (%s) VALUES (%s);\n",
			d.Renderer.QuoteIdentifier(table.Name), colList, strings.Join(lits, ", "))
	}
	return rows.Err()
}

func (d *LogicalDump) renderLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return d.Renderer.QuoteString(string(x))
	case string:
		return d.Renderer.QuoteString(x)
	case time.Time:
		return d.Renderer.QuoteString(x.Format("2006-01-02 15:04:05"))
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", x)
	}
}

func sanitizeTarget(target string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, target)
	if clean == "" {
		clean = "database"
	}
	return clean
}
