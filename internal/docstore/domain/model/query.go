package model

import (
	"strings"
	"time"
)

// CollectionRef names a logical collection. It is not bound to a table until resolved
// through the registry.
type CollectionRef struct {
	Name string
}

// DocRef identifies one document by collection and primary key.
type DocRef struct {
	Collection string
	ID         interface{}
}

// Constraint is one declarative piece of a query: a Where, an OrderBy or a Limit.
type Constraint interface {
	constraint()
}

// Where is an equality filter on a single field.
type Where struct {
	Field    string
	Operator string
	Value    interface{}
}

// OrderBy orders results by a single field.
type OrderBy struct {
	Field     string
	Direction string // Ascending or Descending
}

// Limit caps the number of results. The translator does not apply it yet.
type Limit struct {
	N int
}

func (Where) constraint()   {}
func (OrderBy) constraint() {}
func (Limit) constraint()   {}

const (
	// Ascending is the store's ascending order token.
	Ascending = "ASC"
	// Descending is the store's descending order token.
	Descending = "DESC"
)

// OperatorEqual is the only filter operator the translator understands.
const OperatorEqual = "=="

// DefaultOrderField and DefaultOrderDirection apply when a query carries no OrderBy.
const (
	DefaultOrderField     = "created_at"
	DefaultOrderDirection = Descending
)

// QueryDescriptor bundles a collection with its constraints. Built per call and never
// mutated afterwards.
type QueryDescriptor struct {
	collection  CollectionRef
	constraints []Constraint
}

// Collection returns the collection the query targets.
func (q QueryDescriptor) Collection() CollectionRef {
	return q.collection
}

// Constraints returns a copy of the constraints in composition order.
func (q QueryDescriptor) Constraints() []Constraint {
	out := make([]Constraint, len(q.constraints))
	copy(out, q.constraints)
	return out
}

// Collection returns a reference to the named collection.
func Collection(name string) CollectionRef {
	return CollectionRef{Name: name}
}

// Doc returns a reference to the document with the given id.
func Doc(collection string, id interface{}) DocRef {
	return DocRef{Collection: collection, ID: id}
}

// NewWhere builds an equality filter. Operators other than "==" are accepted here and
// rejected when the query is executed.
func NewWhere(field, operator string, value interface{}) Where {
	return Where{Field: field, Operator: operator, Value: value}
}

// NewOrderBy builds an ordering; direction defaults to ascending and is case-insensitive.
func NewOrderBy(field string, direction ...string) OrderBy {
	dir := Ascending
	if len(direction) > 0 {
		dir = NormalizeDirection(direction[0])
	}
	return OrderBy{Field: field, Direction: dir}
}

// NewLimit builds a Limit constraint.
func NewLimit(n int) Limit {
	return Limit{N: n}
}

// Query bundles ref and constraints into a descriptor.
func Query(ref CollectionRef, constraints ...Constraint) QueryDescriptor {
	cs := make([]Constraint, 0, len(constraints))
	for _, c := range constraints {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return QueryDescriptor{collection: ref, constraints: cs}
}

// NormalizeDirection maps "asc"/"desc" in any case to the store's tokens. Anything that
// is not a descending token orders ascending.
func NormalizeDirection(direction string) string {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "desc", "descending":
		return Descending
	default:
		return Ascending
	}
}

// ServerTimestampLayout is ISO-8601 in UTC with millisecond precision.
const ServerTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Now is the clock behind ServerTimestamp.
var Now = time.Now

// ServerTimestamp returns the current time as an ISO-8601 string, evaluated at call time.
func ServerTimestamp() string {
	return Now().UTC().Format(ServerTimestampLayout)
}
