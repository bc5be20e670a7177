package schema

import (
	"strings"
	"unicode"
)

// ColumnDefinition renders name type [NOT NULL] [DEFAULT v] [PRIMARY KEY] [extra].
func ColumnDefinition(c Column) string {
	parts := []string{c.Name, c.Type}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+*c.Default)
	}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.Extra != "" {
		parts = append(parts, c.Extra)
	}
	return strings.Join(parts, " ")
}

// CreateStatement renders the CREATE TABLE statement for t. The exact text
// matters: constraint presence is later checked as a substring of the stored
// statement.
func CreateStatement(t Table) string {
	return CreateStatementAs(t, t.Name)
}

// CreateStatementAs renders t's CREATE TABLE statement under another name.
func CreateStatementAs(t Table, name string) string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, ColumnDefinition(c))
	}
	for _, kind := range ConstraintKinds {
		defs = append(defs, t.Constraints[kind]...)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(name)
	b.WriteString(" (")
	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")
	if t.OuterStatement != "" {
		b.WriteString(" ")
		b.WriteString(t.OuterStatement)
	}
	b.WriteString(";")
	return b.String()
}

// Strip removes every whitespace rune from s.
func Strip(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ContainsClause reports whether clause appears in stmt once all whitespace is
// removed from both. The test is case-sensitive and order-sensitive.
func ContainsClause(stmt, clause string) bool {
	return strings.Contains(Strip(stmt), Strip(clause))
}

// NormalizeType folds case and collapses whitespace in a declared type so
// "varchar( 20 )" and "VARCHAR(20)" compare equal.
func NormalizeType(t string) string {
	return strings.ToUpper(Strip(t))
}

// NormalizeObjectSQL canonicalizes a CREATE INDEX / CREATE TRIGGER statement
// for comparison with the text the engine stores.
func NormalizeObjectSQL(sql string) string {
	s := strings.ToUpper(Strip(sql))
	s = strings.TrimRight(s, ";")
	return strings.Replace(s, "IFNOTEXISTS", "", 1)
}

// QuoteIdent quotes an identifier for use in generated statements.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
