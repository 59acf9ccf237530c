package core

import "strings"

// Snapshot is a read-only, point-in-time introspection result. It is owned
// transiently by a single reconciliation run and never persisted. A database
// with no tables yields a Snapshot with an empty table list, not an error.
type Snapshot struct {
	Dialect Dialect  `json:"dialect"`
	Tables  []*Table `json:"tables"`
}

// FindTable looks for a live table by name inside the snapshot.
func (s *Snapshot) FindTable(name string) *Table {
	if s == nil {
		return nil
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// IsEmpty reports whether the snapshot contains no tables at all.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Tables) == 0
}

// TableNames returns the names of all live tables, in introspection order.
func (s *Snapshot) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
