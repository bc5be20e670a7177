// Package schema describes the tables, columns, constraints and auxiliary
// objects the embedded database is expected to contain.
package schema

import "strings"

// ConstraintKind names a category of table-level constraint clauses.
type ConstraintKind string

const (
	ForeignKey ConstraintKind = "FOREIGN_KEY"
	Unique     ConstraintKind = "UNIQUE"
	Check      ConstraintKind = "CHECK"
)

// ConstraintKinds lists every kind in rendering order.
var ConstraintKinds = []ConstraintKind{ForeignKey, Unique, Check}

// Descriptor is the declared shape of a database. Treat it as immutable once
// built; it is passed by value to everything that reads it.
type Descriptor struct {
	Version  string            `yaml:"version"`
	Tables   []Table           `yaml:"tables"`
	Triggers map[string]string `yaml:"triggers,omitempty"`
	Indexes  map[string]string `yaml:"indexes,omitempty"`
}

// Table is a declared table. Column order is creation order.
type Table struct {
	Name           string                      `yaml:"name"`
	Columns        []Column                    `yaml:"columns"`
	Constraints    map[ConstraintKind][]string `yaml:"constraints,omitempty"`
	OuterStatement string                      `yaml:"outer_statement,omitempty"`
}

// Column is a declared column. Ordinal is descriptive only; columns are
// matched by Name.
type Column struct {
	Ordinal    int     `yaml:"ordinal"`
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	NotNull    bool    `yaml:"not_null,omitempty"`
	Default    *string `yaml:"default,omitempty"`
	PrimaryKey bool    `yaml:"primary_key,omitempty"`
	Extra      string  `yaml:"extra,omitempty"`
}

// Table returns the declared table with the given name.
func (d Descriptor) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Column returns the column declared at ordinal.
func (t Table) Column(ordinal int) (Column, bool) {
	for _, c := range t.Columns {
		if c.Ordinal == ordinal {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName returns the declared column with the given name.
func (t Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Addable reports whether the column can be appended with ALTER TABLE ADD
// COLUMN. The engine rejects added PRIMARY KEY or UNIQUE columns, NOT NULL
// columns without a default, and non-constant defaults on tables with rows.
func (c Column) Addable() bool {
	if c.PrimaryKey {
		return false
	}
	if c.NotNull && c.Default == nil {
		return false
	}
	if c.Default != nil && !constantDefault(*c.Default) {
		return false
	}
	extra := Strip(strings.ToUpper(c.Extra))
	if strings.Contains(extra, "UNIQUE") || strings.Contains(extra, "PRIMARYKEY") {
		return false
	}
	return true
}

// constantDefault reports whether def is a literal rather than an expression
// or one of the CURRENT_TIME, CURRENT_DATE and CURRENT_TIMESTAMP keywords.
func constantDefault(def string) bool {
	d := strings.ToUpper(strings.TrimSpace(def))
	if strings.HasPrefix(d, "(") {
		return false
	}
	switch d {
	case "CURRENT_TIME", "CURRENT_DATE", "CURRENT_TIMESTAMP":
		return false
	}
	return true
}

// WithoutRowID reports whether the table is declared WITHOUT ROWID.
func (t Table) WithoutRowID() bool {
	return strings.Contains(Strip(strings.ToUpper(t.OuterStatement)), "WITHOUTROWID")
}

// Str returns a pointer to s, for building Default values inline.
func Str(s string) *string {
	return &s
}
