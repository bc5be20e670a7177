package validate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/db"
	"github.com/tordrt/leetstore/internal/fsutil"
	"github.com/tordrt/leetstore/internal/schema"
)

// Options controls a validation run.
type Options struct {
	// Fix repairs drift instead of failing on it, and creates the database
	// file when it does not exist.
	Fix bool
	// MinEngineVersion is the oldest acceptable SQLite version. Empty means
	// DefaultMinEngineVersion.
	MinEngineVersion string
	// DropExtraColumns makes undeclared live columns count as drift.
	DropExtraColumns bool
	// OnUpgrade is called when the stored schema version differs from the
	// declared one. Optional.
	OnUpgrade UpgradeFunc
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Database checks the SQLite file at path against desc and, with Fix set,
// repairs every difference inside a single transaction. A nil desc only opens
// the file and checks the engine version.
//
// The run stops at the first failure. With Fix off nothing is ever written.
func Database(ctx context.Context, path string, desc *schema.Descriptor, opts Options) (*Report, error) {
	if desc != nil {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
	}

	report := &Report{Path: path}
	if desc != nil {
		report.DeclaredVersion = desc.Version
	}

	client, err := openDatabase(ctx, path, opts.Fix, opts.logger(), report)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := checkEngineVersion(ctx, client.GetDB(), opts.MinEngineVersion, report); err != nil {
		return nil, err
	}
	if desc == nil {
		return report, nil
	}

	if !opts.Fix {
		if err := inspect(ctx, client.GetDB(), desc, opts.DropExtraColumns, report); err != nil {
			return nil, err
		}
		if report.Drift(opts.DropExtraColumns) {
			return nil, apperr.ValidationFailed(path, strings.Join(driftReasons(report), "; "))
		}
		return report, nil
	}

	if err := reconcile(ctx, client.GetDB(), desc, opts, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Inspect compares the database at path with desc without changing anything
// and without failing on drift. The file must already exist.
func Inspect(ctx context.Context, path string, desc *schema.Descriptor, opts Options) (*Report, error) {
	if desc == nil {
		return nil, apperr.New(apperr.ErrSchemaInvalid, "no schema descriptor to inspect against")
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	report := &Report{Path: path, DeclaredVersion: desc.Version}

	client, err := openDatabase(ctx, path, false, opts.logger(), report)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := checkEngineVersion(ctx, client.GetDB(), opts.MinEngineVersion, report); err != nil {
		return nil, err
	}
	if err := inspect(ctx, client.GetDB(), desc, opts.DropExtraColumns, report); err != nil {
		return nil, err
	}
	return report, nil
}

func openDatabase(ctx context.Context, path string, fix bool, logger *slog.Logger, report *Report) (*db.SQLiteClient, error) {
	exists := fsutil.Exists(path)
	if !exists && !fix {
		return nil, apperr.New(apperr.ErrFileMissing, "database file does not exist").WithPath(path)
	}
	if exists && !fsutil.ReadWritable(path) {
		return nil, apperr.PermissionDenied(path, "read and write", nil)
	}

	client, err := db.NewSQLiteClient(ctx, path)
	if err != nil && db.IsNotADatabase(err) {
		if !fix {
			return nil, apperr.ValidationFailed(path, "file is not a SQLite database")
		}

		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if err := os.Rename(path, quarantine); err != nil {
			return nil, apperr.PermissionDenied(path, "move aside", err)
		}
		logger.Warn("database file is corrupt, starting over", "path", path, "moved_to", quarantine)
		report.Quarantined = quarantine

		client, err = db.NewSQLiteClient(ctx, path)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrSQLConnection, err, "failed to open database").WithPath(path)
	}

	return client, nil
}

func checkEngineVersion(ctx context.Context, q db.Querier, minVersion string, report *Report) error {
	if minVersion == "" {
		minVersion = DefaultMinEngineVersion
	}

	current, err := db.NewSQLiteInspector(q).EngineVersion(ctx)
	if err != nil {
		return apperr.Introspection(err, "read engine version", "")
	}
	report.EngineVersion = current

	cmp, err := CompareVersions(current, minVersion)
	if err != nil {
		return apperr.Wrap(apperr.ErrVersionIncompatible, err, "cannot compare engine versions").
			With("current", current).
			With("required", minVersion)
	}
	if cmp < 0 {
		return apperr.Newf(apperr.ErrVersionIncompatible,
			"SQLite %s is older than the required %s; upgrade SQLite to continue", current, minVersion).
			With("current", current).
			With("required", minVersion)
	}
	return nil
}

func inspect(ctx context.Context, ex db.Execer, desc *schema.Descriptor, dropExtra bool, report *Report) error {
	existing, err := tableSet(ctx, ex)
	if err != nil {
		return err
	}

	for _, t := range desc.Tables {
		issue, err := Compare(ctx, ex, t, existing[t.Name])
		if err != nil {
			return err
		}
		report.Tables = append(report.Tables, TableReport{
			Table:   t.Name,
			Issue:   issue,
			Action:  ActionNone,
			Drifted: !issue.Empty(dropExtra),
			Reasons: issue.Reasons(t),
		})
	}

	objs, err := CompareObjects(ctx, ex, desc)
	if err != nil {
		return err
	}
	report.Objects = objs

	if desc.Version != "" {
		stored, err := NewVersionStore(ex).Get(ctx)
		if err != nil {
			return err
		}
		report.StoredVersion = stored
	}
	return nil
}

func reconcile(ctx context.Context, conn *sql.DB, desc *schema.Descriptor, opts Options, report *Report) (err error) {
	logger := opts.logger()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrSQLTransaction, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	store := NewVersionStore(tx)
	if desc.Version != "" {
		if err := store.Ensure(ctx); err != nil {
			return err
		}
		stored, err := store.Get(ctx)
		if err != nil {
			return err
		}
		report.StoredVersion = stored

		if stored != "" && stored != desc.Version && opts.OnUpgrade != nil {
			logger.Info("upgrading schema", "from", stored, "to", desc.Version)
			if err := opts.OnUpgrade(ctx, tx, stored, desc.Version); err != nil {
				return apperr.Wrap(apperr.ErrMigrationFailed, err, "schema upgrade failed").
					With("from", stored).
					With("to", desc.Version)
			}
		}
	}

	existing, err := tableSet(ctx, tx)
	if err != nil {
		return err
	}

	ropts := ReconcileOptions{DropExtraColumns: opts.DropExtraColumns, Logger: logger}
	for _, t := range desc.Tables {
		issue, err := Compare(ctx, tx, t, existing[t.Name])
		if err != nil {
			return err
		}
		tr, err := Reconcile(ctx, tx, issue, t, ropts)
		if err != nil {
			return err
		}
		existing[t.Name] = true
		report.Tables = append(report.Tables, tr)
	}

	objs, err := CompareObjects(ctx, tx, desc)
	if err != nil {
		return err
	}
	if err := ReconcileObjects(ctx, tx, objs, logger); err != nil {
		return err
	}
	report.Objects = objs

	if desc.Version != "" && report.StoredVersion != desc.Version {
		if err := store.Set(ctx, desc.Version); err != nil {
			return err
		}
	}

	violations, err := db.NewSQLiteInspector(tx).ForeignKeyViolations(ctx)
	if err != nil {
		return apperr.Introspection(err, "check foreign keys", "")
	}
	for _, v := range violations {
		logger.Warn("foreign key violation", "table", v.Table, "rowid", v.RowID.Int64, "parent", v.Parent)
	}
	report.ForeignKeyViolations = violations

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrSQLTransaction, err, "failed to commit schema changes")
	}
	return nil
}

func tableSet(ctx context.Context, q db.Querier) (map[string]bool, error) {
	names, err := db.NewSQLiteInspector(q).TableNames(ctx)
	if err != nil {
		return nil, apperr.Introspection(err, "list tables", "")
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

func driftReasons(report *Report) []string {
	var reasons []string
	if report.VersionDrift() {
		reasons = append(reasons, fmt.Sprintf("schema version is %q, want %q", report.StoredVersion, report.DeclaredVersion))
	}
	for _, tr := range report.Tables {
		if tr.Drifted {
			reasons = append(reasons, tr.Table+": "+strings.Join(tr.Reasons, ", "))
		}
	}
	for _, o := range report.Objects {
		if o.Status != ObjectOK {
			reasons = append(reasons, fmt.Sprintf("%s %s %s", o.Type, o.Name, o.Status))
		}
	}
	return reasons
}
