package usecase

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"mission-control/internal/docstore/adapter/persistence/mysql"
	"mission-control/internal/docstore/config"
	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/domain/repository"
	"mission-control/internal/docstore/testutil"
	"mission-control/internal/shared/eventbus"
	"mission-control/internal/shared/logger"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// executed is one statement seen by recordingStorage.
type executed struct {
	Statement string
	Params    []interface{}
}

// recordingStorage records every statement before handing it to the real store.
type recordingStorage struct {
	next repository.Storage

	mu    sync.Mutex
	calls []executed
}

func (s *recordingStorage) Execute(ctx context.Context, statement string, params ...interface{}) (*repository.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, executed{Statement: statement, Params: append([]interface{}(nil), params...)})
	s.mu.Unlock()
	return s.next.Execute(ctx, statement, params...)
}

func (s *recordingStorage) last() executed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return executed{}
	}
	return s.calls[len(s.calls)-1]
}

func (s *recordingStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// recordingPublisher keeps every change published to it.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []model.ChangeEvent
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if change, ok := event.Data().(model.ChangeEvent); ok {
		p.changes = append(p.changes, change)
	}
	return p.err
}

func (p *recordingPublisher) all() []model.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ChangeEvent(nil), p.changes...)
}

type fixture struct {
	db         *sql.DB
	storage    *recordingStorage
	publisher  *recordingPublisher
	hook       *test.Hook
	registry   *Registry
	accessor   *DocumentAccessor
	translator *Translator
}

func newFixture(t *testing.T, policy config.UnknownCollectionPolicy) *fixture {
	t.Helper()

	db := testutil.OpenSQLite(t)
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	log := logger.NewLoggerFromEntry(logrus.NewEntry(base))

	f := &fixture{
		db:        db,
		storage:   &recordingStorage{next: mysql.NewPool(db, log)},
		publisher: &recordingPublisher{},
		hook:      hook,
	}

	registry, err := NewRegistryWithEntities(f.storage, DefaultEntities(), policy, f.publisher, log)
	require.NoError(t, err)
	f.registry = registry
	f.accessor = NewDocumentAccessor(f.storage, registry, f.publisher, log)
	f.translator = NewTranslator(registry, f.accessor, log)
	return f
}

// warnings returns the messages logged at warn level.
func (f *fixture) warnings() []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e)
		}
	}
	return out
}

func docIDs(r *model.QueryResult) []interface{} {
	out := make([]interface{}, 0, r.Size())
	for _, d := range r.Docs {
		out = append(out, d.ID)
	}
	return out
}

func field(r *model.QueryResult, name string) []interface{} {
	out := make([]interface{}, 0, r.Size())
	for _, d := range r.Docs {
		out = append(out, d.Data()[name])
	}
	return out
}

var errPublish = errors.New("bus unavailable")
