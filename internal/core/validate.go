package core

import (
	"fmt"
	"strings"
)

// Validate checks the internal consistency of a declared schema before any
// plan is computed. The first violation is returned as a *PlanningError so
// that an invalid schema can never reach the executor.
func Validate(s *Schema) error {
	if s == nil {
		return &PlanningError{Reason: "schema is nil"}
	}
	if len(s.Tables) == 0 {
		return &PlanningError{Reason: "schema declares no tables"}
	}

	seenTables := make(map[string]string, len(s.Tables))
	for _, t := range s.Tables {
		key := strings.ToLower(t.Name)
		if prev, ok := seenTables[key]; ok {
			return &PlanningError{Table: t.Name,
				Reason: fmt.Sprintf("duplicate table name (collides with %q)", prev)}
		}
		seenTables[key] = t.Name

		if err := validateTable(s, t); err != nil {
			return err
		}
	}
	return nil
}

func validateTable(s *Schema, t *Table) error {
	if strings.TrimSpace(t.Name) == "" {
		return &PlanningError{Reason: "table with empty name"}
	}
	if len(t.Columns) == 0 {
		return &PlanningError{Table: t.Name, Reason: "table declares no columns"}
	}

	seenCols := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return &PlanningError{Table: t.Name, Reason: "column with empty name"}
		}
		key := strings.ToLower(c.Name)
		if prev, ok := seenCols[key]; ok {
			return &PlanningError{Table: t.Name, Column: c.Name,
				Reason: fmt.Sprintf("duplicate column name (collides with %q)", prev)}
		}
		seenCols[key] = c.Name

		if err := validateColumn(t, c); err != nil {
			return err
		}
	}

	if err := validateIdentity(t); err != nil {
		return err
	}
	if err := validateIndexes(t); err != nil {
		return err
	}
	return validateForeignKeys(s, t)
}

func validateColumn(t *Table, c *Column) error {
	if c.Type.Kind == TypeUnknown {
		return &PlanningError{Table: t.Name, Column: c.Name, Reason: "column has unknown logical type"}
	}
	if c.Type.Kind == TypeVarChar && c.Type.Length <= 0 {
		return &PlanningError{Table: t.Name, Column: c.Name, Reason: "VARCHAR length must be positive"}
	}
	if c.BackfillFrom != "" {
		if strings.EqualFold(c.BackfillFrom, c.Name) {
			return &PlanningError{Table: t.Name, Column: c.Name, Reason: "backfill source refers to the column itself"}
		}
		if t.FindColumn(c.BackfillFrom) == nil {
			return &PlanningError{Table: t.Name, Column: c.Name,
				Reason: fmt.Sprintf("backfill source %q is not a column of this table", c.BackfillFrom)}
		}
	}
	return nil
}

// validateIdentity enforces the one-identity-per-table invariant: every table
// must declare a primary key (single-column or composite) over existing
// columns.
func validateIdentity(t *Table) error {
	if len(t.PrimaryKey) == 0 {
		return &PlanningError{Table: t.Name, Reason: "table declares no primary key"}
	}
	seen := make(map[string]bool, len(t.PrimaryKey))
	for _, name := range t.PrimaryKey {
		if t.FindColumn(name) == nil {
			return &PlanningError{Table: t.Name, Column: name, Reason: "primary key references unknown column"}
		}
		key := strings.ToLower(name)
		if seen[key] {
			return &PlanningError{Table: t.Name, Column: name, Reason: "primary key lists column twice"}
		}
		seen[key] = true
	}
	return nil
}

func validateIndexes(t *Table) error {
	seen := make(map[string]string, len(t.Indexes))
	for _, idx := range t.Indexes {
		if strings.TrimSpace(idx.Name) == "" {
			return &PlanningError{Table: t.Name, Reason: "index with empty name"}
		}
		key := strings.ToLower(idx.Name)
		if prev, ok := seen[key]; ok {
			return &PlanningError{Table: t.Name,
				Reason: fmt.Sprintf("duplicate index name %q (collides with %q)", idx.Name, prev)}
		}
		seen[key] = idx.Name

		if len(idx.Columns) == 0 {
			return &PlanningError{Table: t.Name, Reason: fmt.Sprintf("index %q has no columns", idx.Name)}
		}
		for _, col := range idx.Columns {
			if t.FindColumn(col) == nil {
				return &PlanningError{Table: t.Name, Column: col,
					Reason: fmt.Sprintf("index %q references unknown column", idx.Name)}
			}
		}
	}
	return nil
}

func validateForeignKeys(s *Schema, t *Table) error {
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 0 {
			return &PlanningError{Table: t.Name, Reason: "foreign key has no source columns"}
		}
		if len(fk.Columns) != len(fk.RefColumns) {
			return &PlanningError{Table: t.Name,
				Reason: fmt.Sprintf("foreign key on %v references a different number of columns %v", fk.Columns, fk.RefColumns)}
		}
		for _, col := range fk.Columns {
			if t.FindColumn(col) == nil {
				return &PlanningError{Table: t.Name, Column: col, Reason: "foreign key references unknown source column"}
			}
		}
		ref := s.FindTable(fk.RefTable)
		if ref == nil {
			return &PlanningError{Table: t.Name,
				Reason: fmt.Sprintf("foreign key references undeclared table %q", fk.RefTable)}
		}
		for _, col := range fk.RefColumns {
			if ref.FindColumn(col) == nil {
				return &PlanningError{Table: t.Name, Column: col,
					Reason: fmt.Sprintf("foreign key references unknown column in table %q", fk.RefTable)}
			}
		}
		switch fk.OnDelete {
		case RefActionNone, RefActionCascade, RefActionSetNull, RefActionRestrict:
		default:
			return &PlanningError{Table: t.Name,
				Reason: fmt.Sprintf("unsupported ON DELETE action %q", fk.OnDelete)}
		}
	}
	return nil
}
