package validate

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/db"
)

const (
	// MetaTable records bookkeeping values next to the application tables.
	MetaTable = "leetstore_meta"

	schemaVersionKey = "schema_version"
)

// UpgradeFunc runs inside the reconciliation transaction when the stored
// schema version differs from the declared one.
type UpgradeFunc func(ctx context.Context, tx *sql.Tx, from, to string) error

// VersionStore reads and writes the schema version recorded in MetaTable.
type VersionStore struct {
	ex db.Execer
}

// NewVersionStore creates a version store over ex.
func NewVersionStore(ex db.Execer) *VersionStore {
	return &VersionStore{ex: ex}
}

// Ensure creates MetaTable if it is absent.
func (s *VersionStore) Ensure(ctx context.Context) error {
	stmt := "CREATE TABLE IF NOT EXISTS " + MetaTable + " (key TEXT PRIMARY KEY, value TEXT NOT NULL)"
	if _, err := s.ex.ExecContext(ctx, stmt); err != nil {
		return apperr.SchemaOperation(err, "create metadata table", MetaTable, stmt)
	}
	return nil
}

// Get returns the stored schema version, or "" when none has been recorded.
func (s *VersionStore) Get(ctx context.Context) (string, error) {
	var n int
	err := s.ex.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", MetaTable).Scan(&n)
	if err != nil {
		return "", apperr.Introspection(err, "look up metadata table", MetaTable)
	}
	if n == 0 {
		return "", nil
	}

	var version string
	err = s.ex.QueryRowContext(ctx,
		"SELECT value FROM "+MetaTable+" WHERE key = ?", schemaVersionKey).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Introspection(err, "read schema version", MetaTable)
	}
	return version, nil
}

// Set records version as the current schema version.
func (s *VersionStore) Set(ctx context.Context, version string) error {
	stmt := "INSERT OR REPLACE INTO " + MetaTable + " (key, value) VALUES (?, ?)"
	if _, err := s.ex.ExecContext(ctx, stmt, schemaVersionKey, version); err != nil {
		return apperr.SchemaOperation(err, "write schema version", MetaTable, stmt)
	}
	return nil
}
