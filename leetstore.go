// Package leetstore prepares the per-user data directory of a local
// application: it locates or creates the directory, keeps settings.json
// structurally in line with a set of defaults, and validates the embedded
// SQLite database against a declared schema.
//
// With Fix set, every kind of drift is repaired in place: missing tables are
// created, missing columns are appended, tables whose structure can no longer
// be altered are rebuilt with their data copied over, and declared indexes and
// triggers are (re)created. Without Fix nothing is written and any drift is an
// error.
//
// # Quick Start
//
//	store, err := leetstore.Init(ctx, &leetstore.Options{Fix: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := store.Open(ctx)
//
// # Layout
//
// The data directory is named .leetsolver and holds two files:
//   - settings.json: JSON object, filled from Options.Settings
//   - database.db: SQLite database, validated against Options.Schema
//
// The directory is searched for in the user's home directory, then next to
// the running executable. The first candidate that exists and is readable and
// writable wins; otherwise the first one that can be created is used.
package leetstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/db"
	"github.com/tordrt/leetstore/internal/formatter"
	"github.com/tordrt/leetstore/internal/locator"
	"github.com/tordrt/leetstore/internal/schema"
	"github.com/tordrt/leetstore/internal/settings"
	"github.com/tordrt/leetstore/internal/validate"
)

// DatabaseFileName is the SQLite file inside the data directory.
const DatabaseFileName = "database.db"

// Options configures Init.
//
// All fields are optional. If not specified:
//   - Dir: located among Candidates
//   - Candidates: the home directory, then the executable's directory
//   - Schema: DefaultSchema()
//   - Settings: DefaultSettings()
//   - MinEngineVersion: "3.0.0"
//   - Logger: slog.Default()
type Options struct {
	// Dir is the data directory to use. When set, the locator is skipped and
	// the directory is created if it does not exist.
	Dir string

	// Candidates are the base directories searched for the data directory,
	// in order. Ignored when Dir is set.
	Candidates []string

	// Schema is the declared shape of the database.
	Schema *schema.Descriptor

	// Settings holds the default settings document. Keys missing from
	// settings.json, or whose JSON kind differs, are taken from here.
	Settings map[string]any

	// Fix repairs drift instead of failing on it. This includes creating the
	// settings and database files when they are missing.
	Fix bool

	// MinEngineVersion is the oldest SQLite version accepted, as a dotted
	// numeric string such as "3.35.0".
	MinEngineVersion string

	// DropExtraColumns treats live columns that the schema does not declare
	// as drift. With Fix set, tables carrying them are rebuilt without them
	// and the data in those columns is lost.
	DropExtraColumns bool

	// OnUpgrade runs inside the reconciliation transaction when the schema
	// version stored in the database differs from Schema.Version. It is not
	// called for a database that has never recorded a version.
	OnUpgrade validate.UpgradeFunc

	// Logger receives progress and warnings.
	Logger *slog.Logger
}

// Store is a prepared data directory.
type Store struct {
	Dir          string
	SettingsPath string
	DatabasePath string

	// Report describes what the database validation found and did.
	Report *validate.Report

	// SettingsChanged is true when settings.json was written.
	SettingsChanged bool
}

// Init locates the data directory, ensures settings.json, and validates
// database.db, in that order. The first failure stops the run and is
// returned wrapped as ErrInitFailed; the underlying code stays reachable
// through apperr.Is.
//
// Returns an error if:
//   - no candidate directory is usable
//   - settings.json is unreadable, malformed or drifted (without Fix)
//   - the SQLite engine is older than MinEngineVersion
//   - the database is missing or drifted (without Fix)
//   - a schema repair statement is rejected
func Init(ctx context.Context, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := resolveDir(opts)
	if err != nil {
		return nil, initFailed(err)
	}
	logger.Debug("using data directory", "dir", dir)

	store := &Store{
		Dir:          dir,
		SettingsPath: filepath.Join(dir, settings.FileName),
		DatabasePath: filepath.Join(dir, DatabaseFileName),
	}

	defaults := opts.Settings
	if defaults == nil {
		defaults = DefaultSettings()
	}
	store.SettingsChanged, err = settings.Ensure(store.SettingsPath, defaults, opts.Fix)
	if err != nil {
		return nil, initFailed(err)
	}
	if store.SettingsChanged {
		logger.Info("settings updated", "path", store.SettingsPath)
	}

	desc := opts.Schema
	if desc == nil {
		desc = DefaultSchema()
	}
	store.Report, err = validate.Database(ctx, store.DatabasePath, desc, validate.Options{
		Fix:              opts.Fix,
		MinEngineVersion: opts.MinEngineVersion,
		DropExtraColumns: opts.DropExtraColumns,
		OnUpgrade:        opts.OnUpgrade,
		Logger:           logger,
	})
	if err != nil {
		return nil, initFailed(err)
	}

	return store, nil
}

// Open returns a client on the store's database with foreign keys enforced.
func (s *Store) Open(ctx context.Context) (*db.SQLiteClient, error) {
	client, err := db.NewSQLiteClient(ctx, s.DatabasePath, db.WithForeignKeys())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrSQLConnection, err, "failed to open database").WithPath(s.DatabasePath)
	}
	return client, nil
}

// DefaultSchema returns the built-in database schema. Each call returns a
// fresh value.
func DefaultSchema() *schema.Descriptor {
	return &schema.Descriptor{
		Version: "1",
		Tables: []schema.Table{
			{
				Name: "questions",
				Columns: []schema.Column{
					{Ordinal: 0, Name: "question_id", Type: "TEXT", PrimaryKey: true},
					{Ordinal: 1, Name: "name", Type: "TEXT", NotNull: true},
				},
			},
		},
	}
}

// DefaultSettings returns the built-in settings document.
func DefaultSettings() map[string]any {
	return map[string]any{
		"logoid": 0,
	}
}

// OutputOptions configures FormatSchema and FormatReport.
//
// If OutputDir is set, FormatSchema writes _overview plus one file per table
// there and Writer is ignored. FormatReport always uses Writer. Writer
// defaults to os.Stdout.
type OutputOptions struct {
	Writer io.Writer

	// OutputDir is created if it doesn't exist.
	OutputDir string

	// Format is "text" (default) or "markdown".
	Format string
}

// FormatSchema renders a schema descriptor.
func FormatSchema(d *schema.Descriptor, opts *OutputOptions) error {
	if opts == nil {
		opts = &OutputOptions{}
	}

	if opts.OutputDir != "" {
		format := opts.Format
		if format == "" {
			format = "text"
		}
		return formatter.NewMultiFileFormatter(opts.OutputDir, format).FormatSchema(d)
	}

	f, err := formatter.New(opts.Format, writerOrStdout(opts.Writer))
	if err != nil {
		return err
	}
	return f.FormatSchema(d)
}

// FormatReport renders a validation report.
func FormatReport(r *validate.Report, opts *OutputOptions) error {
	if opts == nil {
		opts = &OutputOptions{}
	}
	f, err := formatter.New(opts.Format, writerOrStdout(opts.Writer))
	if err != nil {
		return err
	}
	return f.FormatReport(r)
}

func resolveDir(opts *Options) (string, error) {
	if opts.Dir != "" {
		dir, err := filepath.Abs(opts.Dir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", opts.Dir, err)
		}
		return locator.Locate([]string{filepath.Dir(dir)}, filepath.Base(dir))
	}

	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = locator.DefaultCandidates()
	}
	return locator.Locate(candidates, locator.DirName)
}

func initFailed(err error) error {
	return apperr.Wrap(apperr.ErrInitFailed, err, "initialization failed; check the permissions of the data directory or delete it to start over")
}

func writerOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
