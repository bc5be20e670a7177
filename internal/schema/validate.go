package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/leetstore/internal/apperr"
)

// Validate checks the descriptor's own invariants: every table and column is
// named and typed, table names are unique, and column names are unique within
// their table. Ordinals must be unique within a table because missing columns
// are reported by ordinal.
func (d Descriptor) Validate() error {
	var problems []string
	tables := make(map[string]bool, len(d.Tables))

	for i, t := range d.Tables {
		if strings.TrimSpace(t.Name) == "" {
			problems = append(problems, fmt.Sprintf("table #%d has no name", i))
			continue
		}
		if tables[t.Name] {
			problems = append(problems, fmt.Sprintf("table %s declared twice", t.Name))
		}
		tables[t.Name] = true

		if len(t.Columns) == 0 {
			problems = append(problems, fmt.Sprintf("table %s has no columns", t.Name))
		}

		columns := make(map[string]bool, len(t.Columns))
		ordinals := make(map[int]bool, len(t.Columns))
		for j, c := range t.Columns {
			if ordinals[c.Ordinal] {
				problems = append(problems, fmt.Sprintf("table %s ordinal %d used twice", t.Name, c.Ordinal))
			}
			ordinals[c.Ordinal] = true

			if strings.TrimSpace(c.Name) == "" {
				problems = append(problems, fmt.Sprintf("table %s column #%d has no name", t.Name, j))
				continue
			}
			if columns[c.Name] {
				problems = append(problems, fmt.Sprintf("table %s column %s declared twice", t.Name, c.Name))
			}
			columns[c.Name] = true
			if strings.TrimSpace(c.Type) == "" {
				problems = append(problems, fmt.Sprintf("table %s column %s has no type", t.Name, c.Name))
			}
		}

		for kind := range t.Constraints {
			if !knownKind(kind) {
				problems = append(problems, fmt.Sprintf("table %s has unknown constraint kind %s", t.Name, kind))
			}
		}
	}

	for name, def := range d.Indexes {
		if strings.TrimSpace(def) == "" {
			problems = append(problems, fmt.Sprintf("index %s has no definition", name))
		}
	}
	for name, def := range d.Triggers {
		if strings.TrimSpace(def) == "" {
			problems = append(problems, fmt.Sprintf("trigger %s has no definition", name))
		}
	}

	if len(problems) > 0 {
		return apperr.New(apperr.ErrSchemaInvalid, "schema descriptor is invalid").
			With("problems", strings.Join(problems, "; "))
	}
	return nil
}

func knownKind(kind ConstraintKind) bool {
	for _, k := range ConstraintKinds {
		if k == kind {
			return true
		}
	}
	return false
}
