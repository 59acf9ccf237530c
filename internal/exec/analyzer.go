package exec

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // registers the TiDB parser driver
)

// WarningLevel classifies preflight findings.
type WarningLevel string

const (
	WarnCaution WarningLevel = "CAUTION"
	WarnDanger  WarningLevel = "DANGER"
)

// Warning flags a rendered statement that needs operator attention before apply.
type Warning struct {
	Level     WarningLevel
	Message   string
	Statement string
}

// Preflight summarizes an AST pass over the rendered statements of a plan.
// IsTransactional is false when any statement causes an implicit commit on
// the target server, which rules out single-transaction apply.
type Preflight struct {
	Warnings        []Warning
	IsTransactional bool
	NonTxReasons    []string
}

// HasDanger reports whether any warning is at the DANGER level.
func (p *Preflight) HasDanger() bool {
	for _, w := range p.Warnings {
		if w.Level == WarnDanger {
			return true
		}
	}
	return false
}

// Analyzer inspects rendered MySQL statements with TiDB's SQL parser. It
// exists for the server dialect only; SQLite wraps everything in one
// transaction so there is nothing to classify.
type Analyzer struct {
	parser *parser.Parser
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{parser: parser.New()}
}

// Analyze classifies every statement and aggregates the findings.
func (a *Analyzer) Analyze(statements []string) *Preflight {
	result := &Preflight{IsTransactional: true}
	for _, stmt := range statements {
		a.analyzeOne(result, stmt)
	}
	return result
}

func (a *Analyzer) analyzeOne(result *Preflight, stmt string) {
	nodes, _, err := a.parser.Parse(stmt, "", "")
	if err != nil || len(nodes) == 0 {
		result.Warnings = append(result.Warnings, Warning{
			Level:     WarnCaution,
			Message:   "statement could not be parsed for preflight analysis",
			Statement: stmt,
		})
		return
	}

	switch node := nodes[0].(type) {
	case *ast.CreateTableStmt:
		a.markNonTransactional(result, "CREATE TABLE", stmt)
	case *ast.CreateIndexStmt:
		a.warn(result, WarnCaution, "CREATE INDEX may lock the table while the index is built", stmt)
		a.markNonTransactional(result, "CREATE INDEX", stmt)
	case *ast.AlterTableStmt:
		a.analyzeAlter(result, node, stmt)
		a.markNonTransactional(result, "ALTER TABLE", stmt)
	case *ast.RenameTableStmt:
		a.warn(result, WarnCaution, "RENAME TABLE acquires an exclusive lock but is typically fast", stmt)
		a.markNonTransactional(result, "RENAME TABLE", stmt)
	case *ast.DropTableStmt:
		a.warn(result, WarnDanger, "DROP TABLE permanently deletes the table and its data", stmt)
		a.markNonTransactional(result, "DROP TABLE", stmt)
	case *ast.InsertStmt, *ast.UpdateStmt, *ast.SelectStmt:
		// Row-level DML stays inside the surrounding transaction.
	default:
		a.warn(result, WarnCaution, "unclassified statement", stmt)
	}
}

func (a *Analyzer) analyzeAlter(result *Preflight, node *ast.AlterTableStmt, stmt string) {
	for _, spec := range node.Specs {
		switch spec.Tp {
		case ast.AlterTableAddColumns:
			a.warn(result, WarnCaution, "ADD COLUMN may rebuild the table depending on server version", stmt)
		case ast.AlterTableDropColumn:
			a.warn(result, WarnDanger, "DROP COLUMN permanently deletes the column and its data", stmt)
		case ast.AlterTableModifyColumn, ast.AlterTableChangeColumn:
			a.warn(result, WarnCaution, "column modification may rebuild the table and lock it", stmt)
		}
	}
}

func (a *Analyzer) warn(result *Preflight, level WarningLevel, message, stmt string) {
	result.Warnings = append(result.Warnings, Warning{Level: level, Message: message, Statement: stmt})
}

func (a *Analyzer) markNonTransactional(result *Preflight, kind, stmt string) {
	result.IsTransactional = false
	result.NonTxReasons = append(result.NonTxReasons,
		fmt.Sprintf("%s causes an implicit commit in MySQL: %s", kind, stmt))
}
