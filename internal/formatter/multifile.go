package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tordrt/leetstore/internal/schema"
)

// MultiFileFormatter writes a descriptor to a directory, one file per table
// plus an overview.
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// FormatSchema writes the descriptor to multiple files
func (f *MultiFileFormatter) FormatSchema(d *schema.Descriptor) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(d); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range d.Tables {
		if err := f.writeTableFile(table, d); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(d *schema.Descriptor) error {
	ext := f.getFileExtension()
	filename := filepath.Join(f.OutputDir, "_overview"+ext)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	sortedTables := make([]schema.Table, len(d.Tables))
	copy(sortedTables, d.Tables)
	sort.Slice(sortedTables, func(i, j int) bool {
		return sortedTables[i].Name < sortedTables[j].Name
	})

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(file, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<table_name>%s`\n\n", ext)
		_, _ = fmt.Fprintf(file, "## Tables\n\n")
		for _, table := range sortedTables {
			_, _ = fmt.Fprintf(file, "- **%s**", table.Name)
			if targets := referencedTables(table); len(targets) > 0 {
				_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ", "))
			}
			_, _ = fmt.Fprintf(file, "\n")
		}
		return nil
	}

	_, _ = fmt.Fprintf(file, "SCHEMA OVERVIEW\n")
	_, _ = fmt.Fprintf(file, "Each table has a file: <table_name>%s\n\n", ext)
	for _, table := range sortedTables {
		_, _ = fmt.Fprintf(file, "%s", table.Name)
		if targets := referencedTables(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ","))
		}
		_, _ = fmt.Fprintf(file, "\n")
	}
	return nil
}

// writeTableFile writes a single table to its own file
func (f *MultiFileFormatter) writeTableFile(table schema.Table, d *schema.Descriptor) error {
	filename := filepath.Join(f.OutputDir, table.Name+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	incoming := referencedBy(table.Name, d)

	if f.OutputFormat == formatMarkdown {
		NewMarkdownFormatter(file).FormatTable(file, table)
		if len(incoming) > 0 {
			_, _ = fmt.Fprintf(file, "### Referenced by\n\n")
			for _, name := range incoming {
				_, _ = fmt.Fprintf(file, "- %s\n", name)
			}
			_, _ = fmt.Fprintln(file)
		}
		return nil
	}

	NewTextFormatter(file).formatTable(table)
	if len(incoming) > 0 {
		_, _ = fmt.Fprintf(file, "\n  REFERENCED BY: %s\n", strings.Join(incoming, ", "))
	}
	return nil
}

var referencesPattern = regexp.MustCompile(`(?i)REFERENCES\s+"?([A-Za-z_][A-Za-z0-9_]*)"?`)

// referencedTables lists the tables named by t's FOREIGN_KEY clauses.
func referencedTables(t schema.Table) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, clause := range t.Constraints[schema.ForeignKey] {
		for _, m := range referencesPattern.FindAllStringSubmatch(clause, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				targets = append(targets, m[1])
			}
		}
	}
	return targets
}

// referencedBy lists the tables whose foreign keys point at name.
func referencedBy(name string, d *schema.Descriptor) []string {
	var sources []string
	for _, t := range d.Tables {
		for _, target := range referencedTables(t) {
			if target == name {
				sources = append(sources, t.Name)
				break
			}
		}
	}
	return sources
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
