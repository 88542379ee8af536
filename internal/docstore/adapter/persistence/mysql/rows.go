package mysql

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"mission-control/internal/docstore/domain/model"
)

// scanRecords reads every row into a column→value record with driver types normalised
// to int64, float64, string, bool or nil.
func scanRecords(rows *sql.Rows) ([]model.Record, error) {
	columns, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(model.Record, len(columns))
		for i, col := range columns {
			rec[col.Name()] = normalizeValue(values[i], col.DatabaseTypeName())
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// normalizeValue converts a scanned value using the column's declared type. MySQL's
// text protocol returns []byte for every column, so numeric columns are parsed here.
func normalizeValue(v interface{}, dbType string) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeText(string(val), dbType)
	case string:
		return normalizeText(val, dbType)
	case time.Time:
		return val.UTC().Format(model.ServerTimestampLayout)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

func normalizeText(s, dbType string) interface{} {
	switch typeFamily(dbType) {
	case familyInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case familyFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

type family int

const (
	familyOther family = iota
	familyInteger
	familyFloat
)

func typeFamily(dbType string) family {
	t := strings.ToUpper(dbType)
	switch {
	case strings.HasPrefix(t, "UNSIGNED "):
		return typeFamily(strings.TrimPrefix(t, "UNSIGNED "))
	case strings.Contains(t, "INT"), t == "YEAR":
		return familyInteger
	case t == "DECIMAL", t == "NUMERIC", t == "FLOAT", t == "DOUBLE", t == "REAL":
		return familyFloat
	default:
		return familyOther
	}
}
