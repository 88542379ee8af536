package model

import (
	"encoding/json"
	"fmt"
)

// Record is an untyped column→value mapping for one row.
type Record map[string]interface{}

// Copy returns a shallow copy of r.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Snapshot is the read result for one document. A missing row is a Snapshot whose
// Exists reports false, not an error.
type Snapshot struct {
	ID     interface{}
	exists bool
	data   Record
}

// NewSnapshot wraps a row that was found.
func NewSnapshot(id interface{}, data Record) *Snapshot {
	return &Snapshot{ID: id, exists: true, data: data.Copy()}
}

// MissingSnapshot represents a document that does not exist.
func MissingSnapshot(id interface{}) *Snapshot {
	return &Snapshot{ID: id}
}

// SnapshotFromRow uses the row's id column as the snapshot id.
func SnapshotFromRow(row Record) *Snapshot {
	return NewSnapshot(row["id"], row)
}

// Exists reports whether the document was found.
func (s *Snapshot) Exists() bool {
	return s != nil && s.exists
}

// Data returns a shallow copy of the document fields, or nil when it does not exist.
func (s *Snapshot) Data() Record {
	if !s.Exists() {
		return nil
	}
	return s.data.Copy()
}

// DataTo decodes the document into v, typically a pointer to one of the entity records.
func (s *Snapshot) DataTo(v interface{}) error {
	if !s.Exists() {
		return fmt.Errorf("document %v does not exist", s.idOrNil())
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode document %v: %w", s.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %v: %w", s.ID, err)
	}
	return nil
}

// MarshalJSON renders the snapshot as {"id":…,"exists":…,"data":…}.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     interface{} `json:"id"`
		Exists bool        `json:"exists"`
		Data   Record      `json:"data,omitempty"`
	}{ID: s.ID, Exists: s.exists, Data: s.data})
}

func (s *Snapshot) idOrNil() interface{} {
	if s == nil {
		return nil
	}
	return s.ID
}

// QueryResult is the outcome of GetDocs.
type QueryResult struct {
	Docs []*Snapshot `json:"docs"`
}

// NewQueryResult wraps rows as snapshots.
func NewQueryResult(rows []Record) *QueryResult {
	docs := make([]*Snapshot, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, SnapshotFromRow(row))
	}
	return &QueryResult{Docs: docs}
}

// Empty reports whether the query matched nothing.
func (r *QueryResult) Empty() bool {
	return r == nil || len(r.Docs) == 0
}

// Size is the number of matched documents.
func (r *QueryResult) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Docs)
}

// MarshalJSON includes the derived "empty" flag.
func (r *QueryResult) MarshalJSON() ([]byte, error) {
	docs := r.Docs
	if docs == nil {
		docs = []*Snapshot{}
	}
	return json.Marshal(struct {
		Docs  []*Snapshot `json:"docs"`
		Empty bool        `json:"empty"`
	}{Docs: docs, Empty: r.Empty()})
}

// AddResult carries the id assigned by an insert.
type AddResult struct {
	ID interface{} `json:"id"`
}
