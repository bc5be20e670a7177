package validate

import (
	"context"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/db"
	"github.com/tordrt/leetstore/internal/schema"
)

// Compare diffs the live table against its declaration. When exists is false
// it returns the NotExists sentinel without touching the database. Compare
// never mutates anything.
//
// Constraint and outer-statement presence is a whitespace-insensitive but
// case- and order-sensitive substring test against the stored CREATE
// statement, so a clause written differently from its declaration counts as
// missing.
func Compare(ctx context.Context, q db.Querier, t schema.Table, exists bool) (*Issue, error) {
	if !exists {
		return &Issue{Table: t.Name, NotExists: true}, nil
	}

	inspector := db.NewSQLiteInspector(q)

	live, err := inspector.Columns(ctx, t.Name)
	if err != nil {
		return nil, apperr.Introspection(err, "read table columns", t.Name)
	}
	stmt, err := inspector.TableSQL(ctx, t.Name)
	if err != nil {
		return nil, apperr.Introspection(err, "read table definition", t.Name)
	}

	issue := &Issue{
		Table:       t.Name,
		Constraints: make(map[schema.ConstraintKind][]int),
	}

	withoutRowID := t.WithoutRowID()

	pool := append([]db.ColumnInfo(nil), live...)
	for _, col := range t.Columns {
		idx := indexOfColumn(pool, col.Name)
		if idx < 0 {
			issue.ColumnsMissing = append(issue.ColumnsMissing, col.Ordinal)
			continue
		}

		found := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		issue.ColumnsExist = append(issue.ColumnsExist, found)

		// The engine stores every key column of a WITHOUT ROWID table as NOT NULL.
		notNull := col.NotNull || (withoutRowID && found.PrimaryKey > 0)
		if schema.NormalizeType(found.Type) != schema.NormalizeType(col.Type) || found.NotNull != notNull {
			issue.ColumnsMismatched = append(issue.ColumnsMismatched, ColumnMismatch{Declared: col, Live: found})
		}
	}
	issue.ColumnsExtra = pool

	for _, kind := range schema.ConstraintKinds {
		for i, clause := range t.Constraints[kind] {
			if !schema.ContainsClause(stmt, clause) {
				issue.Constraints[kind] = append(issue.Constraints[kind], i)
			}
		}
	}

	if t.OuterStatement != "" && !schema.ContainsClause(stmt, t.OuterStatement) {
		issue.OuterStatement = true
	}

	return issue, nil
}

func indexOfColumn(cols []db.ColumnInfo, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}
