// Package formatter renders validation reports and schema descriptors for the
// leetstore command.
package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/leetstore/internal/schema"
	"github.com/tordrt/leetstore/internal/validate"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// Formatter writes reports and descriptors to an output.
type Formatter interface {
	FormatReport(r *validate.Report) error
	FormatSchema(d *schema.Descriptor) error
}

// New returns the formatter for format ("text" or "markdown") writing to w.
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "", formatText:
		return NewTextFormatter(w), nil
	case formatMarkdown:
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (use text or markdown)", format)
	}
}

// tableStatus is the single word shown next to a table in a report.
func tableStatus(tr validate.TableReport) string {
	switch {
	case tr.Action != validate.ActionNone:
		return string(tr.Action)
	case tr.Issue != nil && tr.Issue.NotExists:
		return validate.ObjectMissing
	case tr.Drifted:
		return "drift"
	default:
		return validate.ObjectOK
	}
}

func objectStatus(o validate.ObjectReport) string {
	if o.Action != validate.ActionNone {
		return string(o.Action)
	}
	return o.Status
}

func primaryKey(t schema.Table) []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}
