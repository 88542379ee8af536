package usecase

import (
	"context"

	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/domain/repository"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/eventbus"
	"mission-control/internal/shared/logger"
)

// DocumentAccessor performs single-record operations by primary key. It resolves tables
// through the registry but does not check payload keys against the entity's column set.
// Every operation fails hard on an unknown collection.
type DocumentAccessor struct {
	storage  repository.Storage
	registry *Registry
	notifier changeNotifier
	log      logger.Logger
}

// NewDocumentAccessor creates an accessor over storage.
func NewDocumentAccessor(storage repository.Storage, registry *Registry, publisher eventbus.Publisher, log logger.Logger) *DocumentAccessor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithComponent("document_accessor")
	return &DocumentAccessor{
		storage:  storage,
		registry: registry,
		notifier: changeNotifier{publisher: publisher, log: log},
		log:      log,
	}
}

func (a *DocumentAccessor) table(collection string) (*Entity, error) {
	e, ok := a.registry.Lookup(collection)
	if !ok {
		return nil, apperrors.NewUnknownCollectionError(collection).WithComponent("document_accessor")
	}
	return e, nil
}

// GetDoc fetches one document. A missing row is reported through Exists, not an error.
func (a *DocumentAccessor) GetDoc(ctx context.Context, ref model.DocRef) (*model.Snapshot, error) {
	e, err := a.table(ref.Collection)
	if err != nil {
		return nil, err
	}

	id := normalizeID(ref.ID)
	stmt, params, err := buildSelectByID(e.Table, id)
	if err != nil {
		return nil, err
	}
	res, err := a.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return model.MissingSnapshot(id), nil
	}
	return model.SnapshotFromRow(res.Rows[0]), nil
}

// AddDoc inserts data with a column list taken from its keys and returns only the id the
// store assigned. Callers that need the stored row fetch it with GetDoc.
func (a *DocumentAccessor) AddDoc(ctx context.Context, ref model.CollectionRef, data model.Record) (*model.AddResult, error) {
	e, err := a.table(ref.Name)
	if err != nil {
		return nil, err
	}

	stmt, params, err := buildInsert(e.Table, data)
	if err != nil {
		return nil, err
	}
	res, err := a.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}

	a.notifier.notify(ctx, model.ChangeAdded, ref.Name, res.InsertID, data, res.AffectedRows)
	return &model.AddResult{ID: res.InsertID}, nil
}

// UpdateDoc sets the given fields on the row. It does not check the row exists: zero
// affected rows is a successful no-op.
func (a *DocumentAccessor) UpdateDoc(ctx context.Context, ref model.DocRef, data model.Record) error {
	e, err := a.table(ref.Collection)
	if err != nil {
		return err
	}

	id := normalizeID(ref.ID)
	stmt, params, err := buildUpdate(e.Table, id, data)
	if err != nil {
		return err
	}
	res, err := a.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return err
	}
	if res.AffectedRows == 0 {
		a.log.WithContext(ctx).Debugf("updateDoc %s/%v matched no rows", ref.Collection, id)
	}

	a.notifier.notify(ctx, model.ChangeModified, ref.Collection, id, data, res.AffectedRows)
	return nil
}

// DeleteDoc removes the row. Like UpdateDoc, a missing row is not an error.
func (a *DocumentAccessor) DeleteDoc(ctx context.Context, ref model.DocRef) error {
	e, err := a.table(ref.Collection)
	if err != nil {
		return err
	}

	id := normalizeID(ref.ID)
	stmt, params, err := buildDelete(e.Table, id)
	if err != nil {
		return err
	}
	res, err := a.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return err
	}

	a.notifier.notify(ctx, model.ChangeRemoved, ref.Collection, id, nil, res.AffectedRows)
	return nil
}
