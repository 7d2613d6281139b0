package repositories

import (
	"fmt"
	"strings"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// pageBounds converts a 1-based page into LIMIT/OFFSET values.
func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// whereBuilder accumulates positional-arg predicates for postgres.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
