package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/leetstore/internal/schema"
	"github.com/tordrt/leetstore/internal/validate"
)

// MarkdownFormatter formats reports and schemas as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatReport writes the report as a markdown document with one table row
// per database table.
func (f *MarkdownFormatter) FormatReport(r *validate.Report) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Report")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "- **Path:** `%s`\n", r.Path)
	_, _ = fmt.Fprintf(f.writer, "- **SQLite:** %s\n", r.EngineVersion)
	if r.DeclaredVersion != "" {
		_, _ = fmt.Fprintf(f.writer, "- **Schema version:** %s (stored: %s)\n", r.DeclaredVersion, orNone(r.StoredVersion))
	}
	if r.Quarantined != "" {
		_, _ = fmt.Fprintf(f.writer, "- **Corrupt file moved to:** `%s`\n", r.Quarantined)
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(r.Tables) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Tables")
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "| Table | Status | Details |")
		_, _ = fmt.Fprintln(f.writer, "|---|---|---|")
		for _, tr := range r.Tables {
			details := append([]string(nil), tr.Reasons...)
			if len(tr.DroppedColumns) > 0 {
				details = append(details, "dropped: "+strings.Join(tr.DroppedColumns, ", "))
			}
			_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s |\n", tr.Table, tableStatus(tr), escapeCell(strings.Join(details, "; ")))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(r.Objects) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Objects")
		_, _ = fmt.Fprintln(f.writer)
		for _, o := range r.Objects {
			_, _ = fmt.Fprintf(f.writer, "- %s **%s**: %s\n", o.Type, o.Name, objectStatus(o))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(r.ForeignKeyViolations) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Foreign key violations")
		_, _ = fmt.Fprintln(f.writer)
		for _, v := range r.ForeignKeyViolations {
			_, _ = fmt.Fprintf(f.writer, "- %s row %d → %s\n", v.Table, v.RowID.Int64, v.Parent)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	return nil
}

// FormatSchema writes the descriptor in markdown format
func (f *MarkdownFormatter) FormatSchema(d *schema.Descriptor) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)
	if d.Version != "" {
		_, _ = fmt.Fprintf(f.writer, "Version: %s\n\n", d.Version)
	}

	for _, table := range d.Tables {
		f.FormatTable(f.writer, table)
	}

	f.formatObjects("Indexes", d.Indexes)
	f.formatObjects("Triggers", d.Triggers)
	return nil
}

// FormatTable writes a single table section to w (shared with the multifile formatter)
func (f *MarkdownFormatter) FormatTable(w io.Writer, table schema.Table) {
	_, _ = fmt.Fprintf(w, "## %s\n\n", table.Name)

	_, _ = fmt.Fprintln(w, "### Columns")
	_, _ = fmt.Fprintln(w)
	for _, col := range table.Columns {
		constraintStr := f.formatConstraints(col)
		if constraintStr != "" {
			_, _ = fmt.Fprintf(w, "- **%s:** %s, %s\n", col.Name, col.Type, constraintStr)
		} else {
			_, _ = fmt.Fprintf(w, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(w)

	var clauses []string
	for _, kind := range schema.ConstraintKinds {
		clauses = append(clauses, table.Constraints[kind]...)
	}
	if len(clauses) > 0 {
		_, _ = fmt.Fprintln(w, "### Constraints")
		_, _ = fmt.Fprintln(w)
		for _, c := range clauses {
			_, _ = fmt.Fprintf(w, "- `%s`\n", c)
		}
		_, _ = fmt.Fprintln(w)
	}

	if table.OuterStatement != "" {
		_, _ = fmt.Fprintf(w, "Options: `%s`\n\n", table.OuterStatement)
	}
}

func (f *MarkdownFormatter) formatConstraints(col schema.Column) string {
	var constraints []string

	if col.PrimaryKey {
		constraints = append(constraints, "PK")
	}

	if col.NotNull {
		constraints = append(constraints, "NOT NULL")
	}

	if col.Default != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	if col.Extra != "" {
		constraints = append(constraints, col.Extra)
	}

	return strings.Join(constraints, ", ")
}

func (f *MarkdownFormatter) formatObjects(title string, defs map[string]string) {
	if len(defs) == 0 {
		return
	}
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", title)
	for _, name := range sortedKeys(defs) {
		_, _ = fmt.Fprintf(f.writer, "- **%s:** `%s`\n", name, defs[name])
	}
	_, _ = fmt.Fprintln(f.writer)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
