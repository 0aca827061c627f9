// Package records defines the sixteen document kinds, their on-disk layout and
// the relational shape of their specialization tables.
package records

import (
	"strings"
)

// ColumnType is the storage class of a specialization column.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Real
	Bool
)

// SQLType returns the SQLite type affinity for the column.
func (t ColumnType) SQLType() string {
	switch t {
	case Integer, Bool:
		return "INTEGER"
	case Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Column describes one kind-specific field.
type Column struct {
	Name string
	Type ColumnType
	// Filter marks enum-like columns usable as list filters.
	Filter bool
	// Exact disables case folding for id-valued filters.
	Exact bool
}

// Kind describes one record kind: its id prefix, the directories holding its
// documents and its specialization table.
type Kind struct {
	Prefix  string
	Name    string
	Table   string
	Dirs    []string
	Columns []Column

	newDoc func() Document
}

// Column looks up a specialization column by name.
func (k *Kind) Column(name string) (Column, bool) {
	for _, c := range k.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the specialization column names in table order.
func (k *Kind) ColumnNames() []string {
	names := make([]string, len(k.Columns))
	for i, c := range k.Columns {
		names[i] = c.Name
	}
	return names
}

// FilterColumns returns the columns usable as list filters.
func (k *Kind) FilterColumns() []Column {
	var out []Column
	for _, c := range k.Columns {
		if c.Filter {
			out = append(out, c)
		}
	}
	return out
}

// All returns every registered kind in a stable order.
func All() []*Kind {
	return registry
}

// ByPrefix finds a kind by its id prefix (case-insensitive).
func ByPrefix(prefix string) (*Kind, bool) {
	k, ok := byPrefix[strings.ToUpper(prefix)]
	return k, ok
}

// Lookup finds a kind by prefix, name or table name (case-insensitive).
// "work-instruction", "work_instruction" and "WORK" all resolve to the same kind.
func Lookup(s string) (*Kind, bool) {
	if k, ok := ByPrefix(s); ok {
		return k, true
	}
	norm := strings.ReplaceAll(strings.ToLower(s), "-", "_")
	for _, k := range registry {
		if norm == strings.ReplaceAll(k.Name, " ", "_") || norm == k.Table {
			return k, true
		}
	}
	return nil, false
}

var (
	registry []*Kind
	byPrefix = map[string]*Kind{}
)

func register(k *Kind) *Kind {
	registry = append(registry, k)
	byPrefix[k.Prefix] = k
	return k
}
