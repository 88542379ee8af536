// Package canned serves fixed sample datasets behind the Storage contract. It is used
// for demos and for running the service without a database. Writes are acknowledged
// but never persisted.
package canned

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/domain/repository"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/logger"
)

//go:embed sample_data.json
var sampleData []byte

var (
	selectPattern = regexp.MustCompile("(?is)^\\s*SELECT\\s+\\*\\s+FROM\\s+`?(\\w+)`?" +
		"(?:\\s+WHERE\\s+(.*?))?" +
		"(?:\\s+ORDER\\s+BY\\s+`?(\\w+)`?(?:\\s+(ASC|DESC))?)?" +
		"(?:\\s+LIMIT\\s+(\\d+))?\\s*;?\\s*$")
	conditionPattern = regexp.MustCompile("`?(\\w+)`?\\s*=\\s*\\?")
	insertPattern    = regexp.MustCompile("(?is)^\\s*INSERT\\s+INTO\\s+`?(\\w+)`?")
	updatePattern    = regexp.MustCompile("(?is)^\\s*UPDATE\\s+`?(\\w+)`?\\s+SET\\s+(.*?)\\s+WHERE\\s+`?(\\w+)`?\\s*=\\s*\\?")
	deletePattern    = regexp.MustCompile("(?is)^\\s*DELETE\\s+FROM\\s+`?(\\w+)`?\\s+WHERE\\s+`?(\\w+)`?\\s*=\\s*\\?")
)

// Store answers the statements the adapter generates from in-memory datasets.
type Store struct {
	tables map[string][]model.Record
	nextID int64
	log    logger.Logger
}

var _ repository.Storage = (*Store)(nil)
var _ repository.HealthChecker = (*Store)(nil)

// New returns a store over the bundled sample data.
func New(log logger.Logger) (*Store, error) {
	return NewFromJSON(sampleData, log)
}

// NewFromJSON returns a store over data, a JSON object mapping table names to row arrays.
func NewFromJSON(data []byte, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string][]map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode canned datasets: %w", err)
	}

	s := &Store{tables: make(map[string][]model.Record, len(raw)), log: log.WithComponent("storage.canned")}
	var maxID int64
	for table, rows := range raw {
		records := make([]model.Record, 0, len(rows))
		for _, row := range rows {
			rec := make(model.Record, len(row))
			for k, v := range row {
				rec[k] = fromJSON(v)
			}
			if id, ok := rec["id"].(int64); ok && id > maxID {
				maxID = id
			}
			records = append(records, rec)
		}
		s.tables[table] = records
	}
	s.nextID = maxID
	return s, nil
}

// Tables lists the dataset names, sorted.
func (s *Store) Tables() []string {
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Execute interprets the statement against the datasets.
func (s *Store) Execute(ctx context.Context, statement string, params ...interface{}) (*repository.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError(statement, err)
	}

	switch repository.FirstKeyword(statement) {
	case "SELECT":
		return s.selectRows(statement, params)
	case "INSERT":
		m := insertPattern.FindStringSubmatch(statement)
		if m == nil {
			return nil, s.unsupported(statement)
		}
		if _, err := s.table(statement, m[1]); err != nil {
			return nil, err
		}
		id := atomic.AddInt64(&s.nextID, 1)
		s.log.WithContext(ctx).Debugf("insert into %s acknowledged as id %d, not persisted", m[1], id)
		return &repository.Result{InsertID: id, AffectedRows: 1}, nil
	case "UPDATE":
		m := updatePattern.FindStringSubmatch(statement)
		if m == nil || len(params) == 0 {
			return nil, s.unsupported(statement)
		}
		return s.countMatches(ctx, statement, m[1], m[3], params[len(params)-1])
	case "DELETE":
		m := deletePattern.FindStringSubmatch(statement)
		if m == nil || len(params) == 0 {
			return nil, s.unsupported(statement)
		}
		return s.countMatches(ctx, statement, m[1], m[2], params[0])
	default:
		return nil, s.unsupported(statement)
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) selectRows(statement string, params []interface{}) (*repository.Result, error) {
	m := selectPattern.FindStringSubmatch(statement)
	if m == nil {
		return nil, s.unsupported(statement)
	}
	rows, err := s.table(statement, m[1])
	if err != nil {
		return nil, err
	}

	var fields []string
	if m[2] != "" {
		for _, c := range conditionPattern.FindAllStringSubmatch(m[2], -1) {
			fields = append(fields, c[1])
		}
	}
	if len(fields) != len(params) {
		return nil, apperrors.NewStorageError(statement,
			fmt.Errorf("statement has %d placeholders but %d parameters were bound", len(fields), len(params)))
	}

	out := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		if matches(row, fields, params) {
			out = append(out, row.Copy())
		}
	}

	if field := m[3]; field != "" {
		desc := strings.EqualFold(m[4], model.Descending)
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][field], out[j][field])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if m[5] != "" {
		if n, err := strconv.Atoi(m[5]); err == nil && n < len(out) {
			out = out[:n]
		}
	}
	return &repository.Result{Rows: out}, nil
}

func (s *Store) countMatches(ctx context.Context, statement, table, field string, value interface{}) (*repository.Result, error) {
	rows, err := s.table(statement, table)
	if err != nil {
		return nil, err
	}
	var n int64
	for _, row := range rows {
		if matches(row, []string{field}, []interface{}{value}) {
			n++
		}
	}
	s.log.WithContext(ctx).Debugf("%s on %s acknowledged (%d rows), not persisted", repository.FirstKeyword(statement), table, n)
	return &repository.Result{AffectedRows: n}, nil
}

func (s *Store) table(statement, name string) ([]model.Record, error) {
	rows, ok := s.tables[name]
	if !ok {
		return nil, apperrors.NewStorageError(statement, fmt.Errorf("table '%s' doesn't exist", name))
	}
	return rows, nil
}

func (s *Store) unsupported(statement string) error {
	s.log.WithFields(map[string]interface{}{"statement": statement}).Error("canned store cannot interpret statement")
	return apperrors.NewStorageError(statement, fmt.Errorf("canned store cannot interpret statement"))
}

func matches(row model.Record, fields []string, params []interface{}) bool {
	for i, f := range fields {
		v, ok := row[f]
		if !ok || v == nil || params[i] == nil {
			return false
		}
		if compare(v, params[i]) != 0 {
			return false
		}
	}
	return true
}

// compare orders numbers numerically and everything else by its string form. Nil sorts
// first.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func fromJSON(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
