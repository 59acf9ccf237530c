// Package toml provides a parser for the declared-schema TOML format.
// It reads a dialect-agnostic schema declaration from a .toml file and
// converts it into the canonical core.Schema representation the rest of
// the engine operates on.
package toml

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"screc/internal/core"
)

// schemaFile is the top-level TOML document. [schema] and [[tables]] are
// both top-level keys.
type schemaFile struct {
	Schema tomlSchema  `toml:"schema"`
	Tables []tomlTable `toml:"tables"`
}

// tomlSchema maps [schema].
type tomlSchema struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// tomlTable maps [[tables]].
type tomlTable struct {
	Name        string           `toml:"name"`
	PrimaryKey  []string         `toml:"primary_key"`
	Columns     []tomlColumn     `toml:"columns"`
	Indexes     []tomlIndex      `toml:"indexes"`
	ForeignKeys []tomlForeignKey `toml:"foreign_keys"`
}

// tomlColumn maps [[tables.columns]]. Type uses the logical spelling, for
// example "integer" or "varchar(255)". Nullable defaults to true so the
// common case reads naturally.
type tomlColumn struct {
	Name         string  `toml:"name"`
	Type         string  `toml:"type"`
	Nullable     *bool   `toml:"nullable"`
	Default      *string `toml:"default"`
	BackfillFrom string  `toml:"backfill_from"`
	Unique       bool    `toml:"unique"`
}

// tomlIndex maps [[tables.indexes]].
type tomlIndex struct {
	Name    string   `toml:"name"`
	Columns []string `toml:"columns"`
	Unique  bool     `toml:"unique"`
}

// tomlForeignKey maps [[tables.foreign_keys]].
type tomlForeignKey struct {
	Name       string   `toml:"name"`
	Columns    []string `toml:"columns"`
	References string   `toml:"references"`
	RefColumns []string `toml:"ref_columns"`
	OnDelete   string   `toml:"on_delete"`
}

// Parser reads declared-schema TOML files.
type Parser struct{}

// NewParser creates a new TOML schema parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile opens the file at the given path and parses it as a schema
// declaration. The result passes core.Validate before it is returned.
func (p *Parser) ParseFile(path string) (*core.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("toml: open file %q: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse reads TOML content from reader and returns the corresponding
// core.Schema.
func (p *Parser) Parse(r io.Reader) (*core.Schema, error) {
	var sf schemaFile
	if _, err := toml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, fmt.Errorf("toml: decode error: %w", err)
	}

	schema := &core.Schema{
		Name:    sf.Schema.Name,
		Version: sf.Schema.Version,
		Tables:  make([]*core.Table, 0, len(sf.Tables)),
	}

	for i := range sf.Tables {
		t, err := p.parseTable(&sf.Tables[i])
		if err != nil {
			return nil, fmt.Errorf("toml: table %q: %w", sf.Tables[i].Name, err)
		}
		schema.Tables = append(schema.Tables, t)
	}

	if err := core.Validate(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func (p *Parser) parseTable(tt *tomlTable) (*core.Table, error) {
	table := &core.Table{
		Name:       tt.Name,
		PrimaryKey: tt.PrimaryKey,
	}

	table.Columns = make([]*core.Column, 0, len(tt.Columns))
	for i := range tt.Columns {
		col, err := parseColumn(&tt.Columns[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", tt.Columns[i].Name, err)
		}
		table.Columns = append(table.Columns, col)
	}

	table.Indexes = make([]*core.Index, 0, len(tt.Indexes))
	for i := range tt.Indexes {
		ti := &tt.Indexes[i]
		table.Indexes = append(table.Indexes, &core.Index{
			Name:    ti.Name,
			Columns: ti.Columns,
			Unique:  ti.Unique,
		})
	}

	table.ForeignKeys = make([]*core.ForeignKey, 0, len(tt.ForeignKeys))
	for i := range tt.ForeignKeys {
		fk, err := parseForeignKey(&tt.ForeignKeys[i])
		if err != nil {
			return nil, err
		}
		table.ForeignKeys = append(table.ForeignKeys, fk)
	}

	return table, nil
}

func parseColumn(tc *tomlColumn) (*core.Column, error) {
	typ, err := core.ParseType(tc.Type)
	if err != nil {
		return nil, err
	}

	// nullable is optional and defaults to true.
	nullable := true
	if tc.Nullable != nil {
		nullable = *tc.Nullable
	}

	return &core.Column{
		Name:         tc.Name,
		Type:         typ,
		Nullable:     nullable,
		DefaultValue: tc.Default,
		BackfillFrom: tc.BackfillFrom,
		Unique:       tc.Unique,
	}, nil
}

func parseForeignKey(tf *tomlForeignKey) (*core.ForeignKey, error) {
	onDelete, err := parseRefAction(tf.OnDelete)
	if err != nil {
		return nil, fmt.Errorf("foreign key %q: %w", tf.Name, err)
	}
	return &core.ForeignKey{
		Name:       tf.Name,
		Columns:    tf.Columns,
		RefTable:   tf.References,
		RefColumns: tf.RefColumns,
		OnDelete:   onDelete,
	}, nil
}

func parseRefAction(raw string) (core.RefAction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "no-action":
		return core.RefActionNone, nil
	case "cascade":
		return core.RefActionCascade, nil
	case "set-null":
		return core.RefActionSetNull, nil
	case "restrict":
		return core.RefActionRestrict, nil
	default:
		return "", fmt.Errorf("unsupported on_delete %q; use 'cascade', 'set-null', 'restrict', or 'no-action'", raw)
	}
}
