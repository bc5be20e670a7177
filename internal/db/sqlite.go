package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// BusyTimeout bounds how long a statement waits on a locked database file.
const BusyTimeout = 5 * time.Second

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execer is a Querier that can also run statements.
type Execer interface {
	Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db   *sql.DB
	path string
}

// ClientOption adjusts how a client connects.
type ClientOption func(*clientConfig)

type clientConfig struct {
	foreignKeys bool
}

// WithForeignKeys turns foreign key enforcement on for the connection.
func WithForeignKeys() ClientOption {
	return func(c *clientConfig) { c.foreignKeys = true }
}

// NewSQLiteClient opens the database at path, creating the file if it does not
// exist. The pool is limited to one connection so pragmas and transactions
// always see the same session.
func NewSQLiteClient(ctx context.Context, path string, opts ...ClientOption) (*SQLiteClient, error) {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	fk := "off"
	if cfg.foreignKeys {
		fk = "on"
	}
	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=%s", path, BusyTimeout.Milliseconds(), fk)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Opening is lazy; reading the schema is what surfaces a non-database file.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read database schema: %w", err)
	}

	return &SQLiteClient{db: db, path: path}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// Path returns the file the client was opened on.
func (c *SQLiteClient) Path() string {
	return c.path
}

// IsNotADatabase reports whether err means the file is not a SQLite database.
func IsNotADatabase(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrNotADB
	}
	return false
}
