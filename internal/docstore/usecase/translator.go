package usecase

import (
	"context"
	"fmt"

	"mission-control/internal/docstore/domain/model"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/logger"
)

// Translator turns a query descriptor into a single-table SELECT and wraps the rows as
// snapshots. Single-document operations are delegated to the DocumentAccessor.
type Translator struct {
	registry *Registry
	accessor *DocumentAccessor
	log      logger.Logger
}

// NewTranslator creates a translator over the registry and accessor.
func NewTranslator(registry *Registry, accessor *DocumentAccessor, log logger.Logger) *Translator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Translator{registry: registry, accessor: accessor, log: log.WithComponent("translator")}
}

// translation is a descriptor reduced to what the SQL needs.
type translation struct {
	filters []FilterTerm
	order   OrderSpec
	limit   *model.Limit
}

// translate partitions the constraints. Where constraints collapse into one term per
// field: a later constraint on a field replaces the earlier value but keeps its
// position, so parameter order follows first appearance. The first OrderBy wins.
func translate(q model.QueryDescriptor) (*translation, error) {
	t := &translation{order: DefaultOrder}
	index := make(map[string]int)
	ordered := false

	for _, c := range q.Constraints() {
		switch v := c.(type) {
		case model.Where:
			if v.Operator != model.OperatorEqual {
				return nil, apperrors.NewValidationError(fmt.Sprintf("operator %q is not supported, only %q", v.Operator, model.OperatorEqual)).
					WithCause(apperrors.ErrInvalidQuery).
					WithDetail("field", v.Field)
			}
			if i, seen := index[v.Field]; seen {
				t.filters[i].Value = v.Value
				continue
			}
			index[v.Field] = len(t.filters)
			t.filters = append(t.filters, FilterTerm{Field: v.Field, Value: v.Value})
		case model.OrderBy:
			if !ordered {
				t.order = OrderSpec{Field: v.Field, Direction: model.NormalizeDirection(v.Direction)}
				ordered = true
			}
		case model.Limit:
			l := v
			t.limit = &l
		default:
			return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported constraint %T", c)).WithCause(apperrors.ErrInvalidQuery)
		}
	}
	return t, nil
}

// GetDocs runs the query. An unknown collection yields an empty result and a warning
// under the lenient policy. Limit constraints are accepted but not applied.
func (t *Translator) GetDocs(ctx context.Context, q model.QueryDescriptor) (*model.QueryResult, error) {
	name := q.Collection().Name
	e, err := t.registry.resolveRead(ctx, name, "getDocs")
	if err != nil {
		return nil, err
	}
	if e == nil {
		return emptyResult(), nil
	}

	tr, err := translate(q)
	if err != nil {
		return nil, err
	}
	if tr.limit != nil {
		t.log.WithContext(ctx).Debugf("getDocs %s: limit %d is not applied", name, tr.limit.N)
	}

	var rows []model.Record
	if len(tr.filters) > 0 {
		rows, err = t.registry.FetchFiltered(ctx, e, tr.filters, tr.order)
	} else {
		rows, err = t.registry.FetchOrdered(ctx, e, tr.order)
	}
	if err != nil {
		return nil, err
	}
	return model.NewQueryResult(rows), nil
}

// GetDoc fetches one document by reference.
func (t *Translator) GetDoc(ctx context.Context, ref model.DocRef) (*model.Snapshot, error) {
	return t.accessor.GetDoc(ctx, ref)
}

// AddDoc inserts a document and returns its new id.
func (t *Translator) AddDoc(ctx context.Context, ref model.CollectionRef, data model.Record) (*model.AddResult, error) {
	return t.accessor.AddDoc(ctx, ref, data)
}

// UpdateDoc applies a partial update.
func (t *Translator) UpdateDoc(ctx context.Context, ref model.DocRef, data model.Record) error {
	return t.accessor.UpdateDoc(ctx, ref, data)
}

// DeleteDoc removes a document.
func (t *Translator) DeleteDoc(ctx context.Context, ref model.DocRef) error {
	return t.accessor.DeleteDoc(ctx, ref)
}
