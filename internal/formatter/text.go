package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tordrt/leetstore/internal/cli"
	"github.com/tordrt/leetstore/internal/schema"
	"github.com/tordrt/leetstore/internal/validate"
)

// TextFormatter formats reports and schemas as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatReport writes one line per table and object, followed by the reasons
// for any drift.
func (f *TextFormatter) FormatReport(r *validate.Report) error {
	_, _ = fmt.Fprintln(f.writer, cli.RenderTitle("DATABASE "+r.Path))
	_, _ = fmt.Fprintln(f.writer, cli.Muted("SQLite "+r.EngineVersion))
	if r.DeclaredVersion != "" {
		stored := r.StoredVersion
		if stored == "" {
			stored = "(none)"
		}
		_, _ = fmt.Fprintf(f.writer, "SCHEMA VERSION %s → %s\n", stored, r.DeclaredVersion)
	}
	if r.Quarantined != "" {
		_, _ = fmt.Fprintf(f.writer, "CORRUPT FILE MOVED TO %s\n", r.Quarantined)
	}

	if len(r.Tables) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "TABLES:")
		for _, tr := range r.Tables {
			_, _ = fmt.Fprintf(f.writer, "  %s %s\n", cli.RenderStatus(tableStatus(tr)), tr.Table)
			for _, reason := range tr.Reasons {
				_, _ = fmt.Fprintf(f.writer, "    - %s\n", reason)
			}
			if len(tr.DroppedColumns) > 0 {
				_, _ = fmt.Fprintf(f.writer, "    dropped: %s\n", strings.Join(tr.DroppedColumns, ", "))
			}
		}
	}

	if len(r.Objects) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "OBJECTS:")
		for _, o := range r.Objects {
			_, _ = fmt.Fprintf(f.writer, "  %s %s %s\n", cli.RenderStatus(objectStatus(o)), o.Type, o.Name)
		}
	}

	if len(r.ForeignKeyViolations) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "FOREIGN KEY VIOLATIONS:")
		for _, v := range r.ForeignKeyViolations {
			_, _ = fmt.Fprintf(f.writer, "    %s row %d → %s\n", v.Table, v.RowID.Int64, v.Parent)
		}
	}

	return nil
}

// FormatSchema writes the descriptor in compact text format
func (f *TextFormatter) FormatSchema(d *schema.Descriptor) error {
	if d.Version != "" {
		_, _ = fmt.Fprintf(f.writer, "VERSION %s\n\n", d.Version)
	}

	for i, table := range d.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(table)
	}

	f.formatObjects("INDEXES", d.Indexes)
	f.formatObjects("TRIGGERS", d.Triggers)
	return nil
}

func (f *TextFormatter) formatTable(table schema.Table) {
	// Table header with primary key
	pkStr := ""
	if pk := primaryKey(table); len(pk) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(pk, ", "))
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatColumn(col))
	}

	var clauses []string
	for _, kind := range schema.ConstraintKinds {
		clauses = append(clauses, table.Constraints[kind]...)
	}
	if len(clauses) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  CONSTRAINTS:")
		for _, c := range clauses {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", c)
		}
	}

	if table.OuterStatement != "" {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", table.OuterStatement)
	}
}

func (f *TextFormatter) formatColumn(col schema.Column) string {
	parts := []string{col.Name + ":", col.Type}

	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}

	if col.Default != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	if col.Extra != "" {
		parts = append(parts, col.Extra)
	}

	return strings.Join(parts, " ")
}

func (f *TextFormatter) formatObjects(title string, defs map[string]string) {
	if len(defs) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "%s:\n", title)
	for _, name := range sortedKeys(defs) {
		_, _ = fmt.Fprintf(f.writer, "  %s: %s\n", name, defs[name])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
