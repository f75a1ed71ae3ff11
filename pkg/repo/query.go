package repo

import (
	"fmt"
	"strings"
)

// Join concatenates non-empty SQL fragments with a single space.
func Join(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		filtered = append(filtered, p)
	}
	return strings.Join(filtered, " ")
}

// JoinWhere builds a WHERE clause from the given conditions joined with AND.
// Returns an empty string when no conditions are given.
func JoinWhere(conds ...string) string {
	filtered := make([]string, 0, len(conds))
	for _, c := range conds {
		if strings.TrimSpace(c) == "" {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(filtered, " AND ")
}

// Insert builds a parameterized INSERT statement for the given fields.
// Optional returning columns are appended as a RETURNING clause.
func Insert(table string, fields []string, returning ...string) string {
	placeholders := make([]string, len(fields))
	for i := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
	)
	if len(returning) > 0 {
		q += " RETURNING " + strings.Join(returning, ", ")
	}
	return q
}

// Update builds a parameterized UPDATE statement. Placeholders are numbered
// from $1 in field order; where conditions must carry their own placeholders.
func Update(table string, fields []string, where ...string) string {
	assignments := make([]string, len(fields))
	for i, f := range fields {
		assignments[i] = fmt.Sprintf("%s = $%d", f, i+1)
	}
	q := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(assignments, ", "))
	if len(where) > 0 {
		q += " " + JoinWhere(where...)
	}
	return q
}

// Exists wraps a base query in SELECT EXISTS.
func Exists(base string) string {
	return fmt.Sprintf("SELECT EXISTS (%s)", base)
}

// FormatLimitOffset renders LIMIT/OFFSET, omitting either when non-positive.
func FormatLimitOffset(limit, offset int) string {
	if limit > 0 && offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	if limit > 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	if offset > 0 {
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return ""
}

// BatchInsertQueryN expands a multi-row VALUES tail onto the given INSERT
// prefix and flattens the row values into a single argument slice.
func BatchInsertQueryN(prefix string, rows [][]any) (string, []any) {
	if len(rows) == 0 {
		return prefix, nil
	}

	width := len(rows[0])
	args := make([]any, 0, len(rows)*width)
	tuples := make([]string, 0, len(rows))
	for i, row := range rows {
		placeholders := make([]string, width)
		for j := range row {
			placeholders[j] = fmt.Sprintf("$%d", i*width+j+1)
		}
		tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, row...)
	}
	return prefix + " " + strings.Join(tuples, ", "), args
}
