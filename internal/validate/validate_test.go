package validate

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/db"
	"github.com/tordrt/leetstore/internal/schema"
)

const attemptsFK = "FOREIGN KEY (question_id) REFERENCES questions(question_id)"

func questionsTable() schema.Table {
	return schema.Table{
		Name: "questions",
		Columns: []schema.Column{
			{Ordinal: 0, Name: "question_id", Type: "TEXT", PrimaryKey: true},
			{Ordinal: 1, Name: "name", Type: "TEXT", NotNull: true},
		},
	}
}

func attemptsTable() schema.Table {
	return schema.Table{
		Name: "attempts",
		Columns: []schema.Column{
			{Ordinal: 0, Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Ordinal: 1, Name: "question_id", Type: "TEXT", NotNull: true},
			{Ordinal: 2, Name: "solved", Type: "INTEGER", NotNull: true, Default: schema.Str("0")},
		},
		Constraints: map[schema.ConstraintKind][]string{
			schema.ForeignKey: {attemptsFK},
		},
	}
}

func kvTable() schema.Table {
	return schema.Table{
		Name: "kv",
		Columns: []schema.Column{
			{Ordinal: 0, Name: "k", Type: "TEXT", PrimaryKey: true},
			{Ordinal: 1, Name: "v", Type: "TEXT"},
		},
		OuterStatement: "WITHOUT ROWID",
	}
}

func testDescriptor() *schema.Descriptor {
	return &schema.Descriptor{Tables: []schema.Table{questionsTable(), attemptsTable()}}
}

func testOptions(fix bool) Options {
	return Options{
		Fix:    fix,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func dbPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "database.db")
}

// seedDB runs stmts against a fresh connection to path and closes it.
func seedDB(t *testing.T, path string, stmts ...string) {
	t.Helper()
	client, err := db.NewSQLiteClient(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer client.Close()

	for _, stmt := range stmts {
		if _, err := client.GetDB().Exec(stmt); err != nil {
			t.Fatalf("seed statement %q failed: %v", stmt, err)
		}
	}
}

// openDB opens path for assertions after a run.
func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	client, err := db.NewSQLiteClient(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	t.Cleanup(func() { client.Close() })
	return client.GetDB()
}

func tablesInOrder(t *testing.T, conn *sql.DB) []string {
	t.Helper()
	rows, err := conn.Query("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY rowid")
	if err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func storedSQL(t *testing.T, conn *sql.DB, typ, name string) string {
	t.Helper()
	var stmt string
	err := conn.QueryRow("SELECT sql FROM sqlite_master WHERE type = ? AND name = ?", typ, name).Scan(&stmt)
	if err != nil {
		t.Fatalf("failed to read %s %s: %v", typ, name, err)
	}
	return stmt
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("query %q failed: %v", query, err)
	}
	return n
}

func TestDatabase_FreshFileCreatesTablesInOrder(t *testing.T) {
	path := dbPath(t)

	report, err := Database(context.Background(), path, testDescriptor(), testOptions(true))
	if err != nil {
		t.Fatalf("Database() failed: %v", err)
	}

	var actions []Action
	for _, tr := range report.Tables {
		actions = append(actions, tr.Action)
	}
	if diff := cmp.Diff([]Action{ActionCreated, ActionCreated}, actions); diff != "" {
		t.Errorf("table actions mismatch (-want +got):\n%s", diff)
	}
	if report.EngineVersion == "" {
		t.Error("expected engine version to be recorded")
	}

	conn := openDB(t, path)
	if diff := cmp.Diff([]string{"questions", "attempts"}, tablesInOrder(t, conn)); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
}

func TestDatabase_CreateStatementShape(t *testing.T) {
	path := dbPath(t)
	desc := &schema.Descriptor{Tables: []schema.Table{{
		Name: "t",
		Columns: []schema.Column{
			{Ordinal: 0, Name: "id", Type: "TEXT", PrimaryKey: true},
			{Ordinal: 1, Name: "name", Type: "TEXT", NotNull: true},
		},
	}}}

	if _, err := Database(context.Background(), path, desc, testOptions(true)); err != nil {
		t.Fatalf("Database() failed: %v", err)
	}

	got := strings.TrimSuffix(storedSQL(t, openDB(t, path), "table", "t"), ";")
	want := "CREATE TABLE t (id TEXT PRIMARY KEY, name TEXT NOT NULL)"
	if got != want {
		t.Errorf("stored SQL = %q, want %q", got, want)
	}
}

func TestDatabase_Idempotent(t *testing.T) {
	path := dbPath(t)
	desc := testDescriptor()
	desc.Version = "1"
	desc.Indexes = map[string]string{
		"idx_attempts_question": "CREATE INDEX IF NOT EXISTS idx_attempts_question ON attempts(question_id);",
	}
	desc.Triggers = map[string]string{
		"trg_questions_touch": "CREATE TRIGGER trg_questions_touch AFTER UPDATE ON questions BEGIN SELECT 1; END;",
	}

	first, err := Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if !first.Changed() {
		t.Error("first run should report changes")
	}
	before := storedSQL(t, openDB(t, path), "table", "attempts")

	second, err := Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Changed() {
		t.Errorf("second run changed the database: %+v", second)
	}
	if second.StoredVersion != "1" {
		t.Errorf("StoredVersion = %q, want %q", second.StoredVersion, "1")
	}

	after := storedSQL(t, openDB(t, path), "table", "attempts")
	if before != after {
		t.Errorf("table definition changed:\nbefore: %s\nafter:  %s", before, after)
	}

	// A fix-off run over the reconciled file finds nothing to report.
	if _, err := Database(context.Background(), path, desc, testOptions(false)); err != nil {
		t.Errorf("fix-off run after reconcile failed: %v", err)
	}
}

func TestDatabase_VersionGate(t *testing.T) {
	path := dbPath(t)
	opts := testOptions(true)
	opts.MinEngineVersion = "999.0"

	_, err := Database(context.Background(), path, testDescriptor(), opts)
	if !apperr.Is(err, apperr.ErrVersionIncompatible) {
		t.Fatalf("expected %s, got %v", apperr.ErrVersionIncompatible, err)
	}

	if names := tablesInOrder(t, openDB(t, path)); len(names) != 0 {
		t.Errorf("expected no tables after a failed version gate, got %v", names)
	}
}

func TestDatabase_MissingFile(t *testing.T) {
	t.Run("fix off", func(t *testing.T) {
		path := dbPath(t)
		_, err := Database(context.Background(), path, testDescriptor(), testOptions(false))
		if !apperr.Is(err, apperr.ErrFileMissing) {
			t.Fatalf("expected %s, got %v", apperr.ErrFileMissing, err)
		}
		if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
			t.Errorf("database file should not have been created, stat: %v", statErr)
		}
	})

	t.Run("fix on", func(t *testing.T) {
		path := dbPath(t)
		if _, err := Database(context.Background(), path, testDescriptor(), testOptions(true)); err != nil {
			t.Fatalf("Database() failed: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("database file should exist: %v", err)
		}
	})

	t.Run("nil descriptor", func(t *testing.T) {
		path := dbPath(t)
		report, err := Database(context.Background(), path, nil, testOptions(true))
		if err != nil {
			t.Fatalf("Database() failed: %v", err)
		}
		if len(report.Tables) != 0 {
			t.Errorf("expected no table reports, got %d", len(report.Tables))
		}
	})
}

func TestDatabase_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}

	path := dbPath(t)
	seedDB(t, path)
	if err := os.Chmod(path, 0o400); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}

	_, err := Database(context.Background(), path, testDescriptor(), testOptions(true))
	if !apperr.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected %s, got %v", apperr.ErrPermissionDenied, err)
	}
}

func TestDatabase_AddsColumnsInPlace(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path,
		"CREATE TABLE questions (question_id TEXT PRIMARY KEY)",
		"INSERT INTO questions VALUES ('q1')",
	)

	table := questionsTable()
	table.Columns[1].Default = schema.Str("''")
	desc := &schema.Descriptor{Tables: []schema.Table{table}}

	report, err := Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("Database() failed: %v", err)
	}
	if got := report.Tables[0].Action; got != ActionAltered {
		t.Errorf("Action = %s, want %s", got, ActionAltered)
	}

	conn := openDB(t, path)
	var id, name string
	if err := conn.QueryRow("SELECT question_id, name FROM questions").Scan(&id, &name); err != nil {
		t.Fatalf("row lost: %v", err)
	}
	if id != "q1" || name != "" {
		t.Errorf("got (%q, %q), want (%q, %q)", id, name, "q1", "")
	}
}

func TestDatabase_NonConstantDefaultRecreates(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path,
		schema.CreateStatement(questionsTable()),
		"INSERT INTO questions VALUES ('q1', 'Two Sum')",
	)

	table := questionsTable()
	table.Columns = append(table.Columns, schema.Column{
		Ordinal: 2, Name: "created_at", Type: "TEXT", Default: schema.Str("CURRENT_TIMESTAMP"),
	})
	desc := &schema.Descriptor{Tables: []schema.Table{table}}

	report, err := Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("Database() failed: %v", err)
	}
	if got := report.Tables[0].Action; got != ActionRecreated {
		t.Errorf("Action = %s, want %s", got, ActionRecreated)
	}

	conn := openDB(t, path)
	var name string
	var createdAt sql.NullString
	if err := conn.QueryRow("SELECT name, created_at FROM questions WHERE question_id = 'q1'").Scan(&name, &createdAt); err != nil {
		t.Fatalf("row lost: %v", err)
	}
	if name != "Two Sum" {
		t.Errorf("name = %q, want %q", name, "Two Sum")
	}
	if !createdAt.Valid || createdAt.String == "" {
		t.Errorf("created_at = %+v, want the default timestamp", createdAt)
	}

	second, err := Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Changed() {
		t.Errorf("second run changed the database: %+v", second.Tables)
	}
}

func TestDatabase_WithoutRowIDTable(t *testing.T) {
	t.Run("fresh file is stable", func(t *testing.T) {
		path := dbPath(t)
		desc := &schema.Descriptor{Tables: []schema.Table{kvTable()}}

		first, err := Database(context.Background(), path, desc, testOptions(true))
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if got := first.Tables[0].Action; got != ActionCreated {
			t.Errorf("first Action = %s, want %s", got, ActionCreated)
		}
		if got := storedSQL(t, openDB(t, path), "table", "kv"); !strings.Contains(got, "WITHOUT ROWID") {
			t.Errorf("stored definition lacks WITHOUT ROWID: %s", got)
		}

		second, err := Database(context.Background(), path, desc, testOptions(true))
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if got := second.Tables[0].Action; got != ActionNone {
			t.Errorf("second Action = %s, want %s (reasons: %v)", got, ActionNone, second.Tables[0].Reasons)
		}

		if _, err := Database(context.Background(), path, desc, testOptions(false)); err != nil {
			t.Errorf("fix-off run failed: %v", err)
		}
	})

	t.Run("rowid table is rebuilt once", func(t *testing.T) {
		path := dbPath(t)
		seedDB(t, path,
			"CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)",
			"INSERT INTO kv VALUES ('a', '1')",
		)
		desc := &schema.Descriptor{Tables: []schema.Table{kvTable()}}

		first, err := Database(context.Background(), path, desc, testOptions(true))
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if got := first.Tables[0].Action; got != ActionRecreated {
			t.Errorf("first Action = %s, want %s", got, ActionRecreated)
		}

		second, err := Database(context.Background(), path, desc, testOptions(true))
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if second.Changed() {
			t.Errorf("second run changed the database: %+v", second.Tables)
		}
		if n := countRows(t, openDB(t, path), "SELECT COUNT(*) FROM kv WHERE k = 'a' AND v = '1'"); n != 1 {
			t.Errorf("rows after rebuild = %d, want 1", n)
		}
	})
}

func TestDatabase_UnversionedFile(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path, schema.CreateStatement(questionsTable()))

	desc := &schema.Descriptor{Version: "1", Tables: []schema.Table{questionsTable()}}

	report, err := Database(context.Background(), path, desc, testOptions(false))
	if err != nil {
		t.Fatalf("fix-off run over a matching unversioned file failed: %v", err)
	}
	if report.StoredVersion != "" {
		t.Errorf("StoredVersion = %q, want empty", report.StoredVersion)
	}
	if report.Drift(false) {
		t.Error("an unversioned matching file should not drift")
	}

	upgrades := 0
	opts := testOptions(true)
	opts.OnUpgrade = func(ctx context.Context, tx *sql.Tx, from, to string) error {
		upgrades++
		return nil
	}
	if _, err := Database(context.Background(), path, desc, opts); err != nil {
		t.Fatalf("fix-on run failed: %v", err)
	}
	if upgrades != 0 {
		t.Errorf("OnUpgrade called %d times, want 0", upgrades)
	}

	stamped, err := Inspect(context.Background(), path, desc, testOptions(false))
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if stamped.StoredVersion != "1" {
		t.Errorf("StoredVersion after fix-on run = %q, want %q", stamped.StoredVersion, "1")
	}

	desc.Version = "2"
	if _, err := Database(context.Background(), path, desc, testOptions(false)); !apperr.Is(err, apperr.ErrValidationFailed) {
		t.Errorf("stamped file at another version: expected %s, got %v", apperr.ErrValidationFailed, err)
	}
}

func TestDatabase_RecreatePreservesData(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path,
		"CREATE TABLE questions (question_id TEXT PRIMARY KEY, name INTEGER, legacy TEXT)",
		"CREATE INDEX idx_questions_name ON questions(name)",
		"INSERT INTO questions VALUES ('q1', 'Two Sum', 'a')",
		"INSERT INTO questions VALUES ('q2', 'Add Two Numbers', 'b')",
	)

	desc := &schema.Descriptor{Tables: []schema.Table{questionsTable()}}
	report, err := Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("Database() failed: %v", err)
	}

	tr := report.Tables[0]
	if tr.Action != ActionRecreated {
		t.Errorf("Action = %s, want %s", tr.Action, ActionRecreated)
	}
	if diff := cmp.Diff([]string{"legacy"}, tr.DroppedColumns); diff != "" {
		t.Errorf("dropped columns mismatch (-want +got):\n%s", diff)
	}

	conn := openDB(t, path)

	rows, err := conn.Query("SELECT question_id, name FROM questions ORDER BY question_id")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()
	var got [][2]string
	for rows.Next() {
		var r [2]string
		if err := rows.Scan(&r[0], &r[1]); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, r)
	}
	want := [][2]string{{"q1", "Two Sum"}, {"q2", "Add Two Numbers"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	cols, err := db.NewSQLiteInspector(conn).Columns(context.Background(), "questions")
	if err != nil {
		t.Fatalf("Columns() failed: %v", err)
	}
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"question_id", "name"}, names); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	if n := countRows(t, conn, "SELECT count(*) FROM sqlite_master WHERE instr(name, '__leetstore_') > 0"); n != 0 {
		t.Errorf("shadow table left behind: %d objects", n)
	}
	if n := countRows(t, conn, "SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_questions_name'"); n != 1 {
		t.Errorf("index was not restored after recreate")
	}
}

func TestDatabase_RecreateFailureRollsBack(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path,
		"CREATE TABLE questions (question_id TEXT PRIMARY KEY)",
		"INSERT INTO questions VALUES ('q1')",
	)

	// name is NOT NULL without a default, so the existing row cannot be copied.
	desc := &schema.Descriptor{Tables: []schema.Table{questionsTable()}}
	_, err := Database(context.Background(), path, desc, testOptions(true))
	if !apperr.Is(err, apperr.ErrSchemaOperation) {
		t.Fatalf("expected %s, got %v", apperr.ErrSchemaOperation, err)
	}

	conn := openDB(t, path)
	if diff := cmp.Diff([]string{"questions"}, tablesInOrder(t, conn)); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
	if n := countRows(t, conn, "SELECT count(*) FROM questions"); n != 1 {
		t.Errorf("expected original row to survive, got %d rows", n)
	}
}

func TestDatabase_ExtraColumns(t *testing.T) {
	seed := []string{
		"CREATE TABLE questions (question_id TEXT PRIMARY KEY, name TEXT NOT NULL, notes TEXT)",
		"INSERT INTO questions VALUES ('q1', 'Two Sum', 'hash map')",
	}
	desc := &schema.Descriptor{Tables: []schema.Table{questionsTable()}}

	t.Run("kept by default", func(t *testing.T) {
		path := dbPath(t)
		seedDB(t, path, seed...)

		report, err := Database(context.Background(), path, desc, testOptions(false))
		if err != nil {
			t.Fatalf("Database() failed: %v", err)
		}
		if got := len(report.Tables[0].Issue.ColumnsExtra); got != 1 {
			t.Errorf("expected 1 extra column, got %d", got)
		}
	})

	t.Run("drift when dropping", func(t *testing.T) {
		path := dbPath(t)
		seedDB(t, path, seed...)

		opts := testOptions(false)
		opts.DropExtraColumns = true
		_, err := Database(context.Background(), path, desc, opts)
		if !apperr.Is(err, apperr.ErrValidationFailed) {
			t.Fatalf("expected %s, got %v", apperr.ErrValidationFailed, err)
		}
	})

	t.Run("dropped with fix", func(t *testing.T) {
		path := dbPath(t)
		seedDB(t, path, seed...)

		opts := testOptions(true)
		opts.DropExtraColumns = true
		report, err := Database(context.Background(), path, desc, opts)
		if err != nil {
			t.Fatalf("Database() failed: %v", err)
		}
		if diff := cmp.Diff([]string{"notes"}, report.Tables[0].DroppedColumns); diff != "" {
			t.Errorf("dropped columns mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDatabase_FixOffReportsDrift(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path, "CREATE TABLE questions (question_id TEXT PRIMARY KEY)")

	_, err := Database(context.Background(), path, testDescriptor(), testOptions(false))
	if !apperr.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected %s, got %v", apperr.ErrValidationFailed, err)
	}
	for _, want := range []string{"questions", "attempts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should name %s: %v", want, err)
		}
	}

	if diff := cmp.Diff([]string{"questions"}, tablesInOrder(t, openDB(t, path))); diff != "" {
		t.Errorf("fix-off run mutated the database (-want +got):\n%s", diff)
	}
}

func TestDatabase_CorruptFile(t *testing.T) {
	garbage := bytes.Repeat([]byte("x"), 4096)

	t.Run("fix off", func(t *testing.T) {
		path := dbPath(t)
		if err := os.WriteFile(path, garbage, 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := Database(context.Background(), path, testDescriptor(), testOptions(false))
		if !apperr.Is(err, apperr.ErrValidationFailed) {
			t.Fatalf("expected %s, got %v", apperr.ErrValidationFailed, err)
		}
		data, _ := os.ReadFile(path)
		if !bytes.Equal(data, garbage) {
			t.Error("fix-off run modified the corrupt file")
		}
	})

	t.Run("fix on", func(t *testing.T) {
		path := dbPath(t)
		if err := os.WriteFile(path, garbage, 0o644); err != nil {
			t.Fatal(err)
		}

		report, err := Database(context.Background(), path, testDescriptor(), testOptions(true))
		if err != nil {
			t.Fatalf("Database() failed: %v", err)
		}
		if !strings.HasPrefix(report.Quarantined, path+".corrupt-") {
			t.Fatalf("Quarantined = %q", report.Quarantined)
		}
		data, err := os.ReadFile(report.Quarantined)
		if err != nil || !bytes.Equal(data, garbage) {
			t.Errorf("quarantined file not preserved: %v", err)
		}
		if diff := cmp.Diff([]string{"questions", "attempts"}, tablesInOrder(t, openDB(t, path))); diff != "" {
			t.Errorf("tables mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDatabase_Objects(t *testing.T) {
	path := dbPath(t)
	desc := testDescriptor()
	desc.Indexes = map[string]string{
		"idx_attempts_question": "CREATE INDEX idx_attempts_question ON attempts(question_id)",
	}

	report, err := Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if got := report.Objects[0]; got.Status != ObjectMissing || got.Action != ActionCreated {
		t.Errorf("first run object = %+v, want missing/created", got)
	}

	desc.Indexes["idx_attempts_question"] = "create index idx_attempts_question on attempts(question_id, solved);"
	report, err = Database(context.Background(), path, desc, testOptions(true))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if got := report.Objects[0]; got.Status != ObjectDiffers || got.Action != ActionRecreated {
		t.Errorf("second run object = %+v, want differs/recreated", got)
	}

	stmt := storedSQL(t, openDB(t, path), "index", "idx_attempts_question")
	if !strings.Contains(stmt, "solved") {
		t.Errorf("index not replaced: %s", stmt)
	}
}

func TestDatabase_OnUpgrade(t *testing.T) {
	path := dbPath(t)

	type call struct{ From, To string }
	var calls []call
	opts := testOptions(true)
	opts.OnUpgrade = func(ctx context.Context, tx *sql.Tx, from, to string) error {
		calls = append(calls, call{from, to})
		return nil
	}

	for _, version := range []string{"1", "2", "2"} {
		desc := testDescriptor()
		desc.Version = version
		if _, err := Database(context.Background(), path, desc, opts); err != nil {
			t.Fatalf("run at version %s failed: %v", version, err)
		}
	}

	if diff := cmp.Diff([]call{{From: "1", To: "2"}}, calls); diff != "" {
		t.Errorf("upgrade calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDatabase_OnUpgradeFailureRollsBack(t *testing.T) {
	path := dbPath(t)

	first := &schema.Descriptor{Version: "1", Tables: []schema.Table{questionsTable()}}
	if _, err := Database(context.Background(), path, first, testOptions(true)); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	opts := testOptions(true)
	opts.OnUpgrade = func(ctx context.Context, tx *sql.Tx, from, to string) error {
		return errors.New("boom")
	}
	second := testDescriptor()
	second.Version = "2"
	_, err := Database(context.Background(), path, second, opts)
	if !apperr.Is(err, apperr.ErrMigrationFailed) {
		t.Fatalf("expected %s, got %v", apperr.ErrMigrationFailed, err)
	}

	conn := openDB(t, path)
	if n := countRows(t, conn, "SELECT count(*) FROM sqlite_master WHERE name = 'attempts'"); n != 0 {
		t.Error("attempts should not exist after a failed upgrade")
	}
	stored, err := NewVersionStore(conn).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if stored != "1" {
		t.Errorf("stored version = %q, want %q", stored, "1")
	}
}

func TestDatabase_ForeignKeyViolations(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path,
		schema.CreateStatement(questionsTable()),
		schema.CreateStatement(attemptsTable()),
		"INSERT INTO attempts (question_id) VALUES ('missing')",
	)

	report, err := Database(context.Background(), path, testDescriptor(), testOptions(true))
	if err != nil {
		t.Fatalf("Database() failed: %v", err)
	}
	if len(report.ForeignKeyViolations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(report.ForeignKeyViolations))
	}
	if v := report.ForeignKeyViolations[0]; v.Table != "attempts" || v.Parent != "questions" {
		t.Errorf("violation = %+v", v)
	}
}

func TestInspect(t *testing.T) {
	path := dbPath(t)
	seedDB(t, path, "CREATE TABLE questions (question_id TEXT PRIMARY KEY)")

	report, err := Inspect(context.Background(), path, testDescriptor(), testOptions(false))
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if !report.Drift(false) {
		t.Error("expected drift")
	}
	if diff := cmp.Diff([]int{1}, report.Tables[0].Issue.ColumnsMissing); diff != "" {
		t.Errorf("missing columns mismatch (-want +got):\n%s", diff)
	}
	if !report.Tables[1].Issue.NotExists {
		t.Error("attempts should be reported missing")
	}

	if diff := cmp.Diff([]string{"questions"}, tablesInOrder(t, openDB(t, path))); diff != "" {
		t.Errorf("Inspect mutated the database (-want +got):\n%s", diff)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name           string
		live           string
		table          func() schema.Table
		wantMissing    []int
		wantMismatched []string
		wantExtra      []string
		wantFK         []int
		wantOuter      bool
	}{
		{
			name:  "whitespace differences in constraint",
			live:  "CREATE TABLE attempts (id INTEGER PRIMARY KEY, question_id TEXT NOT NULL, solved INTEGER NOT NULL DEFAULT 0, FOREIGN KEY(question_id)   REFERENCES questions( question_id ))",
			table: attemptsTable,
		},
		{
			name: "different column in constraint",
			live: "CREATE TABLE attempts (id INTEGER PRIMARY KEY, question_id TEXT NOT NULL, solved INTEGER NOT NULL DEFAULT 0, FOREIGN KEY (question_id) REFERENCES questions(question_id))",
			table: func() schema.Table {
				t := attemptsTable()
				t.Constraints = map[schema.ConstraintKind][]string{
					schema.ForeignKey: {"FOREIGN KEY (qid) REFERENCES questions(question_id)"},
				}
				return t
			},
			wantFK: []int{0},
		},
		{
			name:        "missing column",
			live:        "CREATE TABLE attempts (id INTEGER PRIMARY KEY, question_id TEXT NOT NULL, FOREIGN KEY (question_id) REFERENCES questions(question_id))",
			table:       attemptsTable,
			wantMissing: []int{2},
		},
		{
			name:           "type and not null mismatch",
			live:           "CREATE TABLE attempts (id INTEGER PRIMARY KEY, question_id INTEGER, solved integer not null default 0, FOREIGN KEY (question_id) REFERENCES questions(question_id))",
			table:          attemptsTable,
			wantMismatched: []string{"question_id"},
		},
		{
			name:      "extra column",
			live:      "CREATE TABLE attempts (id INTEGER PRIMARY KEY, question_id TEXT NOT NULL, solved INTEGER NOT NULL DEFAULT 0, note TEXT, FOREIGN KEY (question_id) REFERENCES questions(question_id))",
			table:     attemptsTable,
			wantExtra: []string{"note"},
		},
		{
			name:  "without rowid key is implicitly not null",
			live:  "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT) WITHOUT ROWID",
			table: kvTable,
		},
		{
			name:           "without rowid does not relax other columns",
			live:           "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL) WITHOUT ROWID",
			table:          kvTable,
			wantMismatched: []string{"v"},
		},
		{
			name: "missing outer statement",
			live: "CREATE TABLE attempts (id INTEGER PRIMARY KEY, question_id TEXT NOT NULL, solved INTEGER NOT NULL DEFAULT 0, FOREIGN KEY (question_id) REFERENCES questions(question_id))",
			table: func() schema.Table {
				t := attemptsTable()
				t.OuterStatement = "STRICT"
				return t
			},
			wantOuter: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := dbPath(t)
			seedDB(t, path, tt.live)
			conn := openDB(t, path)

			issue, err := Compare(context.Background(), conn, tt.table(), true)
			if err != nil {
				t.Fatalf("Compare() failed: %v", err)
			}

			if diff := cmp.Diff(tt.wantMissing, issue.ColumnsMissing); diff != "" {
				t.Errorf("missing mismatch (-want +got):\n%s", diff)
			}
			var mismatched []string
			for _, m := range issue.ColumnsMismatched {
				mismatched = append(mismatched, m.Declared.Name)
			}
			if diff := cmp.Diff(tt.wantMismatched, mismatched); diff != "" {
				t.Errorf("mismatched columns (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantExtra, columnNames(issue.ColumnsExtra)); diff != "" {
				t.Errorf("extra columns (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantFK, issue.Constraints[schema.ForeignKey]); diff != "" {
				t.Errorf("missing FK clauses (-want +got):\n%s", diff)
			}
			if issue.OuterStatement != tt.wantOuter {
				t.Errorf("OuterStatement = %v, want %v", issue.OuterStatement, tt.wantOuter)
			}
		})
	}

	t.Run("not exists", func(t *testing.T) {
		issue, err := Compare(context.Background(), nil, questionsTable(), false)
		if err != nil {
			t.Fatalf("Compare() failed: %v", err)
		}
		if !issue.NotExists || issue.Empty(true) {
			t.Errorf("expected NotExists issue, got %s", issue)
		}
	})
}

func TestIssueStructural(t *testing.T) {
	table := questionsTable()
	tests := []struct {
		name      string
		issue     Issue
		dropExtra bool
		want      bool
	}{
		{name: "not null without default", issue: Issue{ColumnsMissing: []int{1}}, want: true},
		{name: "nullable column", issue: Issue{ColumnsMissing: []int{2}}, want: false},
		{name: "missing constraint", issue: Issue{Constraints: map[schema.ConstraintKind][]int{schema.Unique: {0}}}, want: true},
		{name: "extra kept", issue: Issue{ColumnsExtra: []db.ColumnInfo{{Name: "x"}}}, want: false},
		{name: "extra dropped", issue: Issue{ColumnsExtra: []db.ColumnInfo{{Name: "x"}}}, dropExtra: true, want: true},
	}

	table.Columns = append(table.Columns, schema.Column{Ordinal: 2, Name: "note", Type: "TEXT"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.issue.Structural(table, tt.dropExtra); got != tt.want {
				t.Errorf("Structural() = %v, want %v", got, tt.want)
			}
		})
	}
}
