// Package apperr provides the coded error type shared by every leetstore package.
// Errors carry a stable code, structured context and the wrapped cause.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	// Storage errors (E1xxx)
	ErrDirectoryNotFound Code = "E1001" // No usable base directory
	ErrPermissionDenied  Code = "E1002" // Path exists but lacks required access
	ErrFileMissing       Code = "E1003" // Required file absent and fix-mode off

	// Validation errors (E2xxx)
	ErrValidationFailed  Code = "E2001" // Drift detected with fix-mode off
	ErrMalformedDocument Code = "E2002" // Settings file could not be decoded
	ErrSchemaInvalid     Code = "E2003" // Descriptor violates its own invariants

	// Schema operation errors (E3xxx)
	ErrVersionIncompatible Code = "E3001" // Engine version below the floor
	ErrSchemaOperation     Code = "E3002" // DDL statement rejected by the engine
	ErrMigrationFailed     Code = "E3003" // Upgrade callback failed

	// SQL errors (E4xxx)
	ErrSQLConnection  Code = "E4001" // Database could not be opened
	ErrIntrospection  Code = "E4002" // Read-only engine query failed
	ErrSQLTransaction Code = "E4003" // Begin/commit failed

	// Application errors (E9xxx)
	ErrInitFailed Code = "E9001" // Application initialization failed
	ErrConfig     Code = "E9002" // CLI configuration unreadable
)

// Error is the standard error type for leetstore.
type Error struct {
	code    Code
	message string
	context map[string]any
	cause   error
}

// Error returns the formatted error string.
// Format:
//
//	[E3002] failed to create table
//	  sql: CREATE TABLE t (id TEXT);
//	  table: t
//	  cause: near "TABL": syntax error
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.code, e.message))

	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  %s: %v", k, e.context[k]))
		}
	}

	if e.cause != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", e.cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.code == targetErr.code
	}

	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the error context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// GetCause returns the wrapped error.
func (e *Error) GetCause() error {
	return e.cause
}

// With adds a key-value pair to the error context.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithTable adds table context.
func (e *Error) WithTable(table string) *Error {
	return e.With("table", table)
}

// WithSQL adds the offending statement.
func (e *Error) WithSQL(sql string) *Error {
	return e.With("sql", sql)
}

// WithPath adds filesystem path context.
func (e *Error) WithPath(path string) *Error {
	return e.With("path", path)
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new Error that wraps err.
func Wrap(code Code, err error, msg string) *Error {
	e := New(code, msg)
	e.cause = err
	return e
}

// Wrapf wraps err with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// PermissionDenied reports that action could not be performed on path.
func PermissionDenied(path, action string, cause error) *Error {
	return Wrap(ErrPermissionDenied, cause,
		fmt.Sprintf("unable to %s %s; check the permissions or delete the file to continue", action, path)).
		WithPath(path).
		With("action", action)
}

// ValidationFailed reports drift on name that was not repaired.
func ValidationFailed(name, reason string) *Error {
	msg := fmt.Sprintf("validation failed for %s", name)
	if reason != "" {
		msg += ": " + reason
	}
	return New(ErrValidationFailed, msg).
		With("name", name).
		With("reason", reason)
}

// SchemaOperation wraps an engine rejection of a DDL statement.
func SchemaOperation(err error, op, table, sql string) *Error {
	e := Wrap(ErrSchemaOperation, err, "failed to "+op)
	if table != "" {
		e.WithTable(table)
	}
	if sql != "" {
		e.WithSQL(sql)
	}
	return e
}

// Introspection wraps a failed read-only engine query.
func Introspection(err error, op, table string) *Error {
	e := Wrap(ErrIntrospection, err, "failed to "+op)
	if table != "" {
		e.WithTable(table)
	}
	return e
}

// GetErrorCode extracts the first code found in the error chain.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.code
	}

	return ""
}

// Is reports whether any error in the chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.code == code {
			return true
		}
		err = e.cause
	}
	return false
}
