package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	CID          int
	Name         string
	Type         string
	NotNull      bool
	DefaultValue *string
	PrimaryKey   int // 0 = not PK, 1+ = position in the key
}

// Object is an index or trigger stored in sqlite_master.
type Object struct {
	Type  string // "index" or "trigger"
	Name  string
	Table string
	SQL   string
}

// ForeignKeyViolation is one row of PRAGMA foreign_key_check.
type ForeignKeyViolation struct {
	Table  string
	RowID  sql.NullInt64
	Parent string
	FKID   int
}

// SQLiteInspector reads live schema information through any Querier, so it
// works the same inside and outside a transaction.
type SQLiteInspector struct {
	q Querier
}

// NewSQLiteInspector creates a new SQLite schema inspector
func NewSQLiteInspector(q Querier) *SQLiteInspector {
	return &SQLiteInspector{q: q}
}

// EngineVersion returns the running engine's version string.
func (e *SQLiteInspector) EngineVersion(ctx context.Context) (string, error) {
	var version string
	if err := e.q.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// TableNames returns the user tables in the database
func (e *SQLiteInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

// Columns returns column information for a table in definition order
func (e *SQLiteInspector) Columns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName))

	rows, err := e.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		col := ColumnInfo{
			CID:        cid,
			Name:       name,
			Type:       colType,
			NotNull:    notNull != 0,
			PrimaryKey: pk,
		}
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// TableSQL returns the CREATE statement the engine stored for a table.
func (e *SQLiteInspector) TableSQL(ctx context.Context, tableName string) (string, error) {
	var stmt sql.NullString
	err := e.q.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", tableName).Scan(&stmt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("table %s does not exist", tableName)
	}
	if err != nil {
		return "", err
	}
	return stmt.String, nil
}

// Objects returns the stored indexes or triggers. An empty tableName returns
// every object of that type. Automatic indexes (no SQL) are skipped.
func (e *SQLiteInspector) Objects(ctx context.Context, objType, tableName string) ([]Object, error) {
	query := `
		SELECT type, name, tbl_name, sql
		FROM sqlite_master
		WHERE type = ? AND sql IS NOT NULL
	`
	args := []any{objType}
	if tableName != "" {
		query += " AND tbl_name = ?"
		args = append(args, tableName)
	}
	query += " ORDER BY name"

	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.Type, &o.Name, &o.Table, &o.SQL); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}

	return objects, rows.Err()
}

// ForeignKeyViolations runs PRAGMA foreign_key_check over the whole database.
func (e *SQLiteInspector) ForeignKeyViolations(ctx context.Context) ([]ForeignKeyViolation, error) {
	rows, err := e.q.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []ForeignKeyViolation
	for rows.Next() {
		var v ForeignKeyViolation
		if err := rows.Scan(&v.Table, &v.RowID, &v.Parent, &v.FKID); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}

	return violations, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
