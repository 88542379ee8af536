package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mission-control/internal/docstore/domain/model"
	apperrors "mission-control/internal/shared/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FilterTerm is one equality predicate after where-constraints have been collapsed.
type FilterTerm struct {
	Field string
	Value interface{}
}

// OrderSpec is a resolved ordering.
type OrderSpec struct {
	Field     string
	Direction string
}

// DefaultOrder applies to GetDocs when no OrderBy is given.
var DefaultOrder = OrderSpec{Field: model.DefaultOrderField, Direction: model.DefaultOrderDirection}

// quoteIdent backtick-quotes a column or table name after checking it is a plain
// identifier. Values never go through here; they are always bound as parameters.
func quoteIdent(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid identifier %q", name)).
			WithCause(apperrors.ErrInvalidIdentifier).
			WithDetail("identifier", name)
	}
	return "`" + name + "`", nil
}

func orderClause(order OrderSpec) (string, error) {
	col, err := quoteIdent(order.Field)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, model.NormalizeDirection(order.Direction)), nil
}

// buildSelect renders SELECT * FROM table [WHERE a = ? AND …] ORDER BY field dir.
// Parameters follow the order of filters.
func buildSelect(table string, filters []FilterTerm, order OrderSpec) (string, []interface{}, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(tbl)

	params := make([]interface{}, 0, len(filters))
	for i, f := range filters {
		col, err := quoteIdent(f.Field)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(col)
		sb.WriteString(" = ?")
		params = append(params, f.Value)
	}

	ob, err := orderClause(order)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(ob)
	return sb.String(), params, nil
}

func buildSelectByID(table string, id interface{}) (string, []interface{}, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE `id` = ? LIMIT 1", tbl), []interface{}{id}, nil
}

// buildInsert derives the column list from data. Columns are emitted in sorted order so
// the statement text is stable for a given key set.
func buildInsert(table string, data model.Record) (string, []interface{}, error) {
	if len(data) == 0 {
		return "", nil, apperrors.NewValidationError("insert requires at least one field").WithCause(apperrors.ErrEmptyPayload)
	}
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}

	keys := sortedKeys(data)
	cols := make([]string, 0, len(keys))
	marks := make([]string, 0, len(keys))
	params := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		col, err := quoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
		marks = append(marks, "?")
		params = append(params, data[k])
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return stmt, params, nil
}

// buildUpdate renders UPDATE table SET … WHERE id = ?; the id is the last parameter.
func buildUpdate(table string, id interface{}, data model.Record) (string, []interface{}, error) {
	if len(data) == 0 {
		return "", nil, apperrors.NewValidationError("update requires at least one field").WithCause(apperrors.ErrEmptyPayload)
	}
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}

	keys := sortedKeys(data)
	sets := make([]string, 0, len(keys))
	params := make([]interface{}, 0, len(keys)+1)
	for _, k := range keys {
		col, err := quoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, col+" = ?")
		params = append(params, data[k])
	}
	params = append(params, id)

	return fmt.Sprintf("UPDATE %s SET %s WHERE `id` = ?", tbl, strings.Join(sets, ", ")), params, nil
}

func buildDelete(table string, id interface{}) (string, []interface{}, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE `id` = ?", tbl), []interface{}{id}, nil
}

func sortedKeys(data model.Record) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeID turns numeric strings (as they arrive from URLs) into int64 so the
// comparison against the integer primary key is exact.
func normalizeID(id interface{}) interface{} {
	switch v := id.(type) {
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
		return v
	default:
		return v
	}
}

func idString(id interface{}) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(id)
}
