// Package core contains the single source of truth for declared schemas and
// live schema snapshots. It provides a structured, dialect-neutral
// representation of tables, columns, indexes, and foreign keys shared by the
// inspector, the differ, and the executor.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies a supported SQL dialect.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// SupportedDialects returns a slice of all supported dialect values.
func SupportedDialects() []Dialect {
	return []Dialect{DialectSQLite, DialectMySQL}
}

// IsValidDialect reports whether d is a recognized dialect string.
func IsValidDialect(d string) bool {
	for _, supported := range SupportedDialects() {
		if strings.EqualFold(string(supported), d) {
			return true
		}
	}
	return false
}

// Schema is a named, versioned set of table definitions. It is authored or
// loaded once per run and never mutated by the engine.
type Schema struct {
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	Tables  []*Table `json:"tables"`
}

// Table represents a single table definition.
type Table struct {
	Name        string        `json:"name"`
	Columns     []*Column     `json:"columns"`
	PrimaryKey  []string      `json:"primaryKey"`
	Indexes     []*Index      `json:"indexes,omitempty"`
	ForeignKeys []*ForeignKey `json:"foreignKeys,omitempty"`
}

// Column represents a single column inside a table definition.
type Column struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable"`

	// DefaultValue is a literal or the CURRENT_TIMESTAMP keyword.
	DefaultValue *string `json:"defaultValue,omitempty"`

	// BackfillFrom names an existing column whose value populates this
	// column when it is newly added to a table that already has rows.
	BackfillFrom string `json:"backfillFrom,omitempty"`

	// Unique marks this column as having a single-column UNIQUE constraint.
	Unique bool `json:"unique,omitempty"`
}

// Index represents a secondary index on a table.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// ForeignKey represents a foreign-key constraint on a table.
type ForeignKey struct {
	Name       string    `json:"name,omitempty"`
	Columns    []string  `json:"columns"`
	RefTable   string    `json:"refTable"`
	RefColumns []string  `json:"refColumns"`
	OnDelete   RefAction `json:"onDelete,omitempty"`
}

// RefAction is an ENUM with the supported ON DELETE referential actions.
type RefAction string

const (
	RefActionNone     RefAction = ""
	RefActionCascade  RefAction = "CASCADE"
	RefActionSetNull  RefAction = "SET NULL"
	RefActionRestrict RefAction = "RESTRICT"
)

// TypeKind is an ENUM with all logical column types the engine understands.
type TypeKind string

const (
	TypeInteger   TypeKind = "INTEGER"
	TypeBigInt    TypeKind = "BIGINT"
	TypeText      TypeKind = "TEXT"
	TypeVarChar   TypeKind = "VARCHAR"
	TypeBoolean   TypeKind = "BOOLEAN"
	TypeTimestamp TypeKind = "TIMESTAMP"
	TypeJSON      TypeKind = "JSON"
	TypeUnknown   TypeKind = "UNKNOWN"
)

// Type is a dialect-neutral logical column type. Length is only meaningful
// for VARCHAR.
type Type struct {
	Kind   TypeKind `json:"kind"`
	Length int      `json:"length,omitempty"`
}

// String renders the logical type the way a schema author writes it,
// e.g. "VARCHAR(255)" or "INTEGER".
func (t Type) String() string {
	if t.Kind == TypeVarChar {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Length)
	}
	return string(t.Kind)
}

// Equal reports whether two logical types are identical.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == TypeVarChar {
		return t.Length == o.Length
	}
	return true
}

// VarChar builds a VARCHAR logical type of the given length.
func VarChar(n int) Type { return Type{Kind: TypeVarChar, Length: n} }

// ParseType parses a declared logical type string ("integer", "varchar(64)",
// ...) into a Type. Unknown spellings are an error: a declared schema must be
// unambiguous, unlike introspected raw types which go through NormalizeType.
func ParseType(raw string) (Type, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "INTEGER", "INT":
		return Type{Kind: TypeInteger}, nil
	case "BIGINT":
		return Type{Kind: TypeBigInt}, nil
	case "TEXT":
		return Type{Kind: TypeText}, nil
	case "BOOLEAN", "BOOL":
		return Type{Kind: TypeBoolean}, nil
	case "TIMESTAMP", "DATETIME":
		return Type{Kind: TypeTimestamp}, nil
	case "JSON":
		return Type{Kind: TypeJSON}, nil
	}
	if n, ok := parseVarCharLength(s); ok {
		return VarChar(n), nil
	}
	return Type{Kind: TypeUnknown}, fmt.Errorf("unsupported logical type %q", raw)
}

func parseVarCharLength(s string) (int, bool) {
	if !strings.HasPrefix(s, "VARCHAR(") || !strings.HasSuffix(s, ")") {
		return 0, false
	}
	n, err := strconv.Atoi(s[len("VARCHAR(") : len(s)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

type normalizeTypeRule struct {
	kind       TypeKind
	substrings []string
}

// Order matters: earlier rules win, so "bigint" must precede the generic
// "int" rule and "tinyint(1)" must precede both.
var normalizeTypeRules = []normalizeTypeRule{
	{kind: TypeBoolean, substrings: []string{"bool", "tinyint(1)"}},
	{kind: TypeBigInt, substrings: []string{"bigint"}},
	{kind: TypeInteger, substrings: []string{"int"}},
	{kind: TypeTimestamp, substrings: []string{"timestamp", "datetime", "date", "time"}},
	{kind: TypeJSON, substrings: []string{"json"}},
	{kind: TypeText, substrings: []string{"text", "char", "clob", "string"}},
}

// NormalizeType maps a raw dialect type spelling (e.g. "INT", "BIGINT
// AUTO_INCREMENT", "varchar(64)") to the logical Type used everywhere else,
// so the differ never compares raw dialect strings. Matching is
// case-insensitive and based on substring containment.
func NormalizeType(rawType string) Type {
	lower := strings.ToLower(strings.TrimSpace(rawType))
	if lower == "" {
		return Type{Kind: TypeUnknown}
	}
	if n, ok := parseVarCharLength(strings.ToUpper(firstToken(lower))); ok {
		return VarChar(n)
	}
	for _, rule := range normalizeTypeRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return Type{Kind: rule.kind}
			}
		}
	}
	return Type{Kind: TypeUnknown}
}

// firstToken strips trailing attributes like "AUTO_INCREMENT" or "unsigned"
// that some dialects report as part of the column type.
func firstToken(s string) string {
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		return s[:idx]
	}
	return s
}

// NormalizeDefault canonicalizes a default-value expression for comparison:
// surrounding quotes are stripped and keyword defaults are uppercased, so
// "'pending'" and "pending", or "current_timestamp" and "CURRENT_TIMESTAMP",
// compare equal across dialects.
func NormalizeDefault(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	if strings.EqualFold(s, "CURRENT_TIMESTAMP") || strings.EqualFold(s, "CURRENT_TIMESTAMP()") || strings.EqualFold(s, "NULL") {
		return strings.ToUpper(strings.TrimSuffix(s, "()"))
	}
	return s
}

// GetName methods allow these types to be used with a generic Named interface.
func (t *Table) GetName() string       { return t.Name }
func (c *Column) GetName() string      { return c.Name }
func (i *Index) GetName() string       { return i.Name }
func (fk *ForeignKey) GetName() string { return fk.Name }

// FindTable looks for a table by name inside a schema.
func (s *Schema) FindTable(name string) *Table {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// FindColumn looks for a column by name inside a table.
func (t *Table) FindColumn(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// FindIndex looks for an index by name inside a table.
func (t *Table) FindIndex(name string) *Index {
	for _, i := range t.Indexes {
		if strings.EqualFold(i.Name, name) {
			return i
		}
	}
	return nil
}

// ColumnNames returns the ordered column names of the table.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// String returns a short description of the table.
func (t *Table) String() string {
	return fmt.Sprintf("Table: %s (%d cols, %d indexes, %d fks)",
		t.Name, len(t.Columns), len(t.Indexes), len(t.ForeignKeys))
}
