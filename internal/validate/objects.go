package validate

import (
	"context"
	"log/slog"
	"sort"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/db"
	"github.com/tordrt/leetstore/internal/schema"
)

// Object statuses reported by CompareObjects.
const (
	ObjectMissing = "missing"
	ObjectDiffers = "differs"
	ObjectOK      = "ok"
)

// ObjectReport is the state of one declared index or trigger.
type ObjectReport struct {
	Type       string // "index" or "trigger"
	Name       string
	Status     string
	Action     Action
	definition string
}

// CompareObjects checks every declared index, then every declared trigger,
// against sqlite_master. Names are visited in sorted order. Objects that exist
// but are not declared are ignored.
func CompareObjects(ctx context.Context, q db.Querier, desc *schema.Descriptor) ([]ObjectReport, error) {
	inspector := db.NewSQLiteInspector(q)

	var reports []ObjectReport
	for _, group := range []struct {
		typ  string
		defs map[string]string
	}{
		{"index", desc.Indexes},
		{"trigger", desc.Triggers},
	} {
		if len(group.defs) == 0 {
			continue
		}

		live, err := inspector.Objects(ctx, group.typ, "")
		if err != nil {
			return nil, apperr.Introspection(err, "list "+group.typ+"es", "")
		}
		stored := make(map[string]string, len(live))
		for _, o := range live {
			stored[o.Name] = o.SQL
		}

		names := make([]string, 0, len(group.defs))
		for name := range group.defs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			r := ObjectReport{Type: group.typ, Name: name, Action: ActionNone, definition: group.defs[name]}
			sql, ok := stored[name]
			switch {
			case !ok:
				r.Status = ObjectMissing
			case schema.NormalizeObjectSQL(sql) != schema.NormalizeObjectSQL(r.definition):
				r.Status = ObjectDiffers
			default:
				r.Status = ObjectOK
			}
			reports = append(reports, r)
		}
	}

	return reports, nil
}

// ReconcileObjects creates missing objects and replaces differing ones, in the
// order CompareObjects returned them. Actions are recorded on objs in place.
func ReconcileObjects(ctx context.Context, ex db.Execer, objs []ObjectReport, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for i := range objs {
		o := &objs[i]
		switch o.Status {
		case ObjectMissing:
			if err := execDDL(ctx, ex, logger, "create "+o.Type, "", o.definition); err != nil {
				return err.With("name", o.Name)
			}
			o.Action = ActionCreated
			logger.Info("created "+o.Type, "name", o.Name)

		case ObjectDiffers:
			drop := "DROP INDEX " + schema.QuoteIdent(o.Name)
			if o.Type == "trigger" {
				drop = "DROP TRIGGER " + schema.QuoteIdent(o.Name)
			}
			if err := execDDL(ctx, ex, logger, "drop "+o.Type, "", drop); err != nil {
				return err.With("name", o.Name)
			}
			if err := execDDL(ctx, ex, logger, "create "+o.Type, "", o.definition); err != nil {
				return err.With("name", o.Name)
			}
			o.Action = ActionRecreated
			logger.Info("recreated "+o.Type, "name", o.Name)
		}
	}

	return nil
}
