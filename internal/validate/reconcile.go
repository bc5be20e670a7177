package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/db"
	"github.com/tordrt/leetstore/internal/schema"
)

// ReconcileOptions tunes how Reconcile repairs a table.
type ReconcileOptions struct {
	// DropExtraColumns recreates tables that carry undeclared columns,
	// discarding those columns. Off by default: extras are reported only.
	DropExtraColumns bool
	Logger           *slog.Logger
}

// Reconcile brings one table in line with its declaration according to issue:
//   - NotExists: the table is created verbatim from the descriptor.
//   - only appendable columns missing: ALTER TABLE ADD COLUMN per column.
//   - anything else: recreate-and-migrate (see recreate).
//
// An empty issue is a no-op. Rejected statements fail with ErrSchemaOperation.
func Reconcile(ctx context.Context, ex db.Execer, issue *Issue, t schema.Table, opts ReconcileOptions) (TableReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := TableReport{
		Table:   t.Name,
		Issue:   issue,
		Action:  ActionNone,
		Drifted: !issue.Empty(opts.DropExtraColumns),
		Reasons: issue.Reasons(t),
	}

	switch {
	case issue.NotExists:
		stmt := schema.CreateStatement(t)
		if err := execDDL(ctx, ex, logger, "create table", t.Name, stmt); err != nil {
			return report, err
		}
		report.Action = ActionCreated
		logger.Info("created table", "table", t.Name)

	case issue.Empty(opts.DropExtraColumns):
		if len(issue.ColumnsExtra) > 0 {
			logger.Info("table has undeclared columns", "table", t.Name, "columns", columnNames(issue.ColumnsExtra))
		}

	case issue.Structural(t, opts.DropExtraColumns):
		dropped, err := recreate(ctx, ex, logger, issue, t)
		if err != nil {
			return report, err
		}
		report.Action = ActionRecreated
		report.DroppedColumns = dropped
		logger.Info("recreated table", "table", t.Name, "reasons", strings.Join(issue.Reasons(t), "; "))

	default:
		for _, ord := range issue.ColumnsMissing {
			c, _ := t.Column(ord)
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", schema.QuoteIdent(t.Name), schema.ColumnDefinition(c))
			if err := execDDL(ctx, ex, logger, "add column", t.Name, stmt); err != nil {
				return report, err.With("column", c.Name)
			}
		}
		report.Action = ActionAltered
		logger.Info("added columns", "table", t.Name, "count", len(issue.ColumnsMissing))
	}

	return report, nil
}

// recreate rebuilds t under a shadow name, copies every column present in
// both shapes, drops the old table and renames the shadow into place. Columns
// only in the old shape are lost and returned; columns only in the new shape
// take their declared default. Indexes and triggers attached to the old table
// are re-created where they still apply.
func recreate(ctx context.Context, ex db.Execer, logger *slog.Logger, issue *Issue, t schema.Table) ([]string, error) {
	inspector := db.NewSQLiteInspector(ex)

	var attached []db.Object
	for _, objType := range []string{"index", "trigger"} {
		objs, err := inspector.Objects(ctx, objType, t.Name)
		if err != nil {
			return nil, apperr.Introspection(err, "list "+objType+"es", t.Name)
		}
		attached = append(attached, objs...)
	}

	shadow := shadowName(t.Name)
	stmt := schema.CreateStatementAs(t, shadow)
	if err := execDDL(ctx, ex, logger, "create shadow table", t.Name, stmt); err != nil {
		return nil, err
	}

	var common []string
	for _, c := range t.Columns {
		if indexOfColumn(issue.ColumnsExist, c.Name) >= 0 {
			common = append(common, schema.QuoteIdent(c.Name))
		}
	}
	if len(common) > 0 {
		cols := strings.Join(common, ", ")
		stmt = fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			schema.QuoteIdent(shadow), cols, cols, schema.QuoteIdent(t.Name))
		if err := execDDL(ctx, ex, logger, "copy table data", t.Name, stmt); err != nil {
			return nil, err
		}
	}

	dropped := columnNames(issue.ColumnsExtra)
	if len(dropped) > 0 {
		logger.Warn("dropping data in undeclared columns", "table", t.Name, "columns", dropped)
	}

	stmt = "DROP TABLE " + schema.QuoteIdent(t.Name)
	if err := execDDL(ctx, ex, logger, "drop old table", t.Name, stmt); err != nil {
		return nil, err
	}

	// Legacy rename leaves views and triggers on other tables untouched instead
	// of re-validating them against a schema that briefly lacks the table.
	if err := execDDL(ctx, ex, logger, "enable legacy rename", t.Name, "PRAGMA legacy_alter_table = ON"); err != nil {
		return nil, err
	}
	stmt = fmt.Sprintf("ALTER TABLE %s RENAME TO %s", schema.QuoteIdent(shadow), schema.QuoteIdent(t.Name))
	renameErr := execDDL(ctx, ex, logger, "rename shadow table", t.Name, stmt)
	if err := execDDL(ctx, ex, logger, "disable legacy rename", t.Name, "PRAGMA legacy_alter_table = OFF"); err != nil && renameErr == nil {
		renameErr = err
	}
	if renameErr != nil {
		return nil, renameErr
	}

	for _, o := range attached {
		if _, err := ex.ExecContext(ctx, o.SQL); err != nil {
			logger.Warn("could not restore "+o.Type+" after recreate", "table", t.Name, "name", o.Name, "error", err)
		}
	}

	return dropped, nil
}

func execDDL(ctx context.Context, ex db.Execer, logger *slog.Logger, op, table, stmt string) *apperr.Error {
	logger.Debug("executing statement", "table", table, "sql", stmt)
	if _, err := ex.ExecContext(ctx, stmt); err != nil {
		return apperr.SchemaOperation(err, op, table, stmt)
	}
	return nil
}

func shadowName(table string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return table + "__leetstore_" + suffix
}

func columnNames(cols []db.ColumnInfo) []string {
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
