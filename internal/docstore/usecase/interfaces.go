package usecase

import (
	"context"

	"mission-control/internal/docstore/domain/model"
)

// QueryExecutor is the document-style entrypoint used by calling code.
type QueryExecutor interface {
	GetDocs(ctx context.Context, q model.QueryDescriptor) (*model.QueryResult, error)
	GetDoc(ctx context.Context, ref model.DocRef) (*model.Snapshot, error)
	AddDoc(ctx context.Context, ref model.CollectionRef, data model.Record) (*model.AddResult, error)
	UpdateDoc(ctx context.Context, ref model.DocRef, data model.Record) error
	DeleteDoc(ctx context.Context, ref model.DocRef) error
}

// CollectionRouter is the name-dispatched registry entrypoint.
type CollectionRouter interface {
	Collections() []string
	GetCollection(ctx context.Context, name string) (*model.QueryResult, error)
	GetDocument(ctx context.Context, name string, id interface{}) (*model.Snapshot, error)
	QueryCollection(ctx context.Context, name string, filters map[string]interface{}) (*model.QueryResult, error)
	CreateDocument(ctx context.Context, name string, data model.Record) (*model.Snapshot, error)
	UpdateDocument(ctx context.Context, name string, id interface{}, data model.Record) (*model.Snapshot, error)
	DeleteDocument(ctx context.Context, name string, id interface{}) (int64, error)
}

var (
	_ QueryExecutor    = (*Translator)(nil)
	_ CollectionRouter = (*Registry)(nil)
)
