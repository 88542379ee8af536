package repository

import (
	"context"
	"strings"
	"unicode"

	"mission-control/internal/docstore/domain/model"
)

// Storage is the minimal contract the adapter needs from a backing store: run one
// parameterized statement and report rows or write metadata.
//
// Implementations must return failures as *errors.StorageError with the original
// message intact and must not retry.
type Storage interface {
	Execute(ctx context.Context, statement string, params ...interface{}) (*Result, error)
}

// HealthChecker is implemented by storage handles that can verify connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Result is what Execute returns. Reads populate Rows; writes populate InsertID and
// AffectedRows.
type Result struct {
	Rows         []model.Record
	InsertID     int64
	AffectedRows int64
}

// IsQuery reports whether the statement is expected to produce rows.
func IsQuery(statement string) bool {
	kw := firstKeyword(statement)
	switch kw {
	case "SELECT", "SHOW", "WITH", "DESCRIBE", "EXPLAIN", "PRAGMA":
		return true
	default:
		return false
	}
}

// FirstKeyword returns the upper-cased leading keyword of statement.
func FirstKeyword(statement string) string {
	return firstKeyword(statement)
}

func firstKeyword(statement string) string {
	fields := strings.FieldsFunc(statement, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
