// Package sqlbuild assembles parameterized SELECT statements from optional
// filters. Every filter method is a no-op when its value is absent, so callers
// can pass options through without branching.
//
// Table and column names are interpolated and must come from a fixed
// allow-list; values are always bound as parameters.
package sqlbuild

import (
	"fmt"
	"strings"
)

// FoldFunc is the SQL function the Fold helpers use to compare text
// case-insensitively. SQLite's LOWER only folds ASCII, so the storage layer
// registers FoldFunc with full Unicode lower-casing on every connection.
const FoldFunc = "qms_fold"

// Fold wraps a SQL expression in FoldFunc.
func Fold(expr string) string {
	return FoldFunc + "(" + expr + ")"
}

// Select is a SELECT statement under construction.
type Select struct {
	columns []string
	from    string
	joins   []string
	where   []string
	args    []any
	groupBy []string
	orderBy []string
	limit   int
}

// From starts a statement selecting columns from table.
func From(table string, columns ...string) *Select {
	return &Select{from: table, columns: columns}
}

// Join adds a join clause verbatim ("JOIN risks r ON r.id = e.id").
func (s *Select) Join(clause string) *Select {
	s.joins = append(s.joins, clause)
	return s
}

// Where adds a raw condition with its arguments.
func (s *Select) Where(cond string, args ...any) *Select {
	s.where = append(s.where, cond)
	s.args = append(s.args, args...)
	return s
}

// Eq adds "col = ?" when value is non-empty.
func (s *Select) Eq(col, value string) *Select {
	if value == "" {
		return s
	}
	return s.Where(col+" = ?", value)
}

// EqFold adds a case-insensitive equality when value is non-empty.
func (s *Select) EqFold(col, value string) *Select {
	if value == "" {
		return s
	}
	return s.Where(Fold(col)+" = "+Fold("?"), value)
}

// In adds "col IN (...)" when values is non-empty.
func (s *Select) In(col string, values []string) *Select {
	return s.in(col, values, false)
}

// InFold is In with case-insensitive matching.
func (s *Select) InFold(col string, values []string) *Select {
	return s.in(col, values, true)
}

func (s *Select) in(col string, values []string, fold bool) *Select {
	var args []any
	for _, v := range values {
		if v != "" {
			args = append(args, v)
		}
	}
	if len(args) == 0 {
		return s
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	if fold {
		marks = strings.TrimSuffix(strings.Repeat(Fold("?")+",", len(args)), ",")
		col = Fold(col)
	}
	return s.Where(fmt.Sprintf("%s IN (%s)", col, marks), args...)
}

// Contains adds a case-insensitive substring match over one or more columns,
// OR-ed together, when needle is non-empty. LIKE wildcards in needle match
// literally.
func (s *Select) Contains(needle string, cols ...string) *Select {
	if needle == "" || len(cols) == 0 {
		return s
	}
	pattern := "%" + EscapeLike(strings.ToLower(needle)) + "%"
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = Fold(c) + ` LIKE ? ESCAPE '\'`
		args[i] = pattern
	}
	cond := conds[0]
	if len(conds) > 1 {
		cond = "(" + strings.Join(conds, " OR ") + ")"
	}
	return s.Where(cond, args...)
}

// EscapeLike escapes LIKE metacharacters with a backslash.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GroupBy appends grouping expressions.
func (s *Select) GroupBy(exprs ...string) *Select {
	s.groupBy = append(s.groupBy, exprs...)
	return s
}

// OrderBy appends a sort key.
func (s *Select) OrderBy(expr string, desc bool) *Select {
	if expr == "" {
		return s
	}
	if desc {
		expr += " DESC"
	}
	s.orderBy = append(s.orderBy, expr)
	return s
}

// Limit caps the result; n <= 0 means no limit.
func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Build returns the SQL text and its arguments.
func (s *Select) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(s.from)
	for _, j := range s.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.where, " AND "))
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.groupBy, ", "))
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.orderBy, ", "))
	}

	args := append([]any(nil), s.args...)
	if s.limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, s.limit)
	}
	return b.String(), args
}
