package validate

import (
	"fmt"
	"strings"

	"github.com/tordrt/leetstore/internal/db"
	"github.com/tordrt/leetstore/internal/schema"
)

// Issue is the comparison of one declared table against its live counterpart.
// It is built fresh on every run and consumed by Reconcile.
type Issue struct {
	Table string

	// NotExists short-circuits everything else: the table must be created.
	NotExists bool

	// ColumnsExist holds the live definitions of declared columns found by name.
	ColumnsExist []db.ColumnInfo
	// ColumnsMissing holds the ordinals of declared columns absent from the table.
	ColumnsMissing []int
	// ColumnsMismatched holds matched columns whose type or NOT NULL flag differ.
	ColumnsMismatched []ColumnMismatch
	// ColumnsExtra holds live columns the descriptor does not declare.
	ColumnsExtra []db.ColumnInfo

	// Constraints maps each kind to the indices of declared clauses whose
	// text is absent from the stored CREATE statement.
	Constraints map[schema.ConstraintKind][]int
	// OuterStatement is true when the declared outer statement is absent.
	OuterStatement bool
}

// ColumnMismatch pairs a declared column with the live column of the same name.
type ColumnMismatch struct {
	Declared schema.Column
	Live     db.ColumnInfo
}

// MissingConstraints counts declared clauses absent from the live table.
func (i *Issue) MissingConstraints() int {
	n := 0
	for _, idx := range i.Constraints {
		n += len(idx)
	}
	return n
}

// Empty reports whether nothing needs to change. Extra columns only count when
// dropExtra is set.
func (i *Issue) Empty(dropExtra bool) bool {
	if i.NotExists {
		return false
	}
	if len(i.ColumnsMissing) > 0 || len(i.ColumnsMismatched) > 0 {
		return false
	}
	if i.MissingConstraints() > 0 || i.OuterStatement {
		return false
	}
	return !dropExtra || len(i.ColumnsExtra) == 0
}

// Structural reports whether the table has to be recreated rather than
// altered in place: the engine cannot add constraints, change a column type,
// or append a column it would reject.
func (i *Issue) Structural(t schema.Table, dropExtra bool) bool {
	if i.MissingConstraints() > 0 || i.OuterStatement || len(i.ColumnsMismatched) > 0 {
		return true
	}
	if dropExtra && len(i.ColumnsExtra) > 0 {
		return true
	}
	for _, ord := range i.ColumnsMissing {
		c, ok := t.Column(ord)
		if !ok || !c.Addable() {
			return true
		}
	}
	return false
}

// Reasons describes each problem in the issue, for reports and error messages.
func (i *Issue) Reasons(t schema.Table) []string {
	if i.NotExists {
		return []string{"table is missing"}
	}

	var reasons []string
	if len(i.ColumnsMissing) > 0 {
		names := make([]string, 0, len(i.ColumnsMissing))
		for _, ord := range i.ColumnsMissing {
			if c, ok := t.Column(ord); ok {
				names = append(names, c.Name)
			}
		}
		reasons = append(reasons, "missing columns: "+strings.Join(names, ", "))
	}
	for _, m := range i.ColumnsMismatched {
		reasons = append(reasons, fmt.Sprintf("column %s is %s, want %s",
			m.Declared.Name, describeLive(m.Live), describeDeclared(m.Declared)))
	}
	for _, kind := range schema.ConstraintKinds {
		for _, idx := range i.Constraints[kind] {
			reasons = append(reasons, fmt.Sprintf("missing %s constraint: %s", kind, t.Constraints[kind][idx]))
		}
	}
	if i.OuterStatement {
		reasons = append(reasons, "missing outer statement: "+t.OuterStatement)
	}
	if len(i.ColumnsExtra) > 0 {
		names := make([]string, len(i.ColumnsExtra))
		for j, c := range i.ColumnsExtra {
			names[j] = c.Name
		}
		reasons = append(reasons, "undeclared columns: "+strings.Join(names, ", "))
	}
	return reasons
}

func describeLive(c db.ColumnInfo) string {
	if c.NotNull {
		return c.Type + " NOT NULL"
	}
	return c.Type
}

func describeDeclared(c schema.Column) string {
	if c.NotNull {
		return c.Type + " NOT NULL"
	}
	return c.Type
}

// String renders the issue on one line.
func (i *Issue) String() string {
	if i.NotExists {
		return i.Table + ": table is missing"
	}
	if len(i.ColumnsMissing) == 0 && len(i.ColumnsMismatched) == 0 && len(i.ColumnsExtra) == 0 &&
		i.MissingConstraints() == 0 && !i.OuterStatement {
		return i.Table + ": ok"
	}
	return fmt.Sprintf("%s: %d missing, %d mismatched, %d extra columns, %d missing constraints, outer statement missing=%t",
		i.Table, len(i.ColumnsMissing), len(i.ColumnsMismatched), len(i.ColumnsExtra), i.MissingConstraints(), i.OuterStatement)
}
