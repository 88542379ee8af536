package usecase

import (
	"context"
	"time"

	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/shared/eventbus"
	"mission-control/internal/shared/logger"

	"github.com/google/uuid"
)

// ChangeBusEvent carries a model.ChangeEvent over the event bus. Data returns the
// model.ChangeEvent value.
type ChangeBusEvent struct {
	change model.ChangeEvent
}

// NewChangeBusEvent wraps change for publishing.
func NewChangeBusEvent(change model.ChangeEvent) *ChangeBusEvent {
	return &ChangeBusEvent{change: change}
}

func (e *ChangeBusEvent) Type() string         { return model.EventTypeDocumentChanged }
func (e *ChangeBusEvent) Data() interface{}    { return e.change }
func (e *ChangeBusEvent) Timestamp() time.Time { return e.change.OccurredAt }
func (e *ChangeBusEvent) Source() string       { return "docstore" }

// Change returns the wrapped change.
func (e *ChangeBusEvent) Change() model.ChangeEvent { return e.change }

// changeNotifier publishes write notifications. A nil publisher disables it. Publishing
// failures are logged and never fail the write that triggered them.
type changeNotifier struct {
	publisher eventbus.Publisher
	log       logger.Logger
}

// notify drops writes that touched no rows.
func (n changeNotifier) notify(ctx context.Context, typ model.ChangeType, collection string, id interface{}, data model.Record, affected int64) {
	if n.publisher == nil || affected == 0 {
		return
	}

	change := model.ChangeEvent{
		EventID:      uuid.NewString(),
		Type:         typ,
		Collection:   collection,
		DocID:        idString(id),
		Data:         data.Copy(),
		OccurredAt:   time.Now().UTC(),
		AffectedRows: affected,
	}
	if err := n.publisher.Publish(ctx, NewChangeBusEvent(change)); err != nil {
		n.log.WithContext(ctx).Warnf("failed to publish %s event for %s/%s: %v", typ, collection, change.DocID, err)
	}
}
