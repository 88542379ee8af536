package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"mission-control/internal/docstore/config"
	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/shared/eventbus"
	"mission-control/internal/shared/logger"

	"github.com/redis/go-redis/v9"
)

// RedisEventStore appends document change events to one Redis stream per collection
// and serves them back to feeds resuming after a stream id. Streams are capped at an
// approximate maximum length.
type RedisEventStore struct {
	client    *redis.Client
	prefix    string
	maxLength int64
	bus       eventbus.Publisher
	logger    logger.Logger
}

// loggedEvent republishes a stored change with its stream id.
type loggedEvent struct{ change model.ChangeEvent }

func (e loggedEvent) Type() string         { return model.EventTypeDocumentLogged }
func (e loggedEvent) Data() interface{}    { return e.change }
func (e loggedEvent) Timestamp() time.Time { return e.change.OccurredAt }
func (e loggedEvent) Source() string       { return "event_store" }

// NewRedisClient creates a client from configuration and checks it answers.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.GetAddr(),
		Password:   cfg.Password,
		DB:         cfg.Database,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.GetAddr(), err)
	}
	return client, nil
}

// NewRedisEventStore creates a stream sink writing under cfg.StreamPrefix.
func NewRedisEventStore(client *redis.Client, cfg config.RedisConfig, log logger.Logger) *RedisEventStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	prefix := cfg.StreamPrefix
	if prefix == "" {
		prefix = "docstore"
	}
	return &RedisEventStore{
		client:    client,
		prefix:    prefix,
		maxLength: cfg.StreamMaxLength,
		logger:    log.WithComponent("event_store"),
	}
}

// StreamName returns the stream key for a collection.
func (r *RedisEventStore) StreamName(collection string) string {
	return r.prefix + ":" + collection
}

// Subscribe attaches the store to the bus so every published change is appended and
// then republished under model.EventTypeDocumentLogged with its stream id.
func (r *RedisEventStore) Subscribe(bus eventbus.EventBusInterface) string {
	r.bus = bus
	return bus.Subscribe(model.EventTypeDocumentChanged, r.Handle)
}

// Handle is the event-bus handler. Events that do not carry a model.ChangeEvent are ignored.
func (r *RedisEventStore) Handle(ctx context.Context, event eventbus.Event) error {
	change, ok := event.Data().(model.ChangeEvent)
	if !ok {
		r.logger.Debugf("ignoring %s event with payload %T", event.Type(), event.Data())
		return nil
	}
	id, err := r.StoreEvent(ctx, change)
	if err != nil {
		return err
	}
	if r.bus != nil {
		change.StreamID = id
		if err := r.bus.Publish(ctx, loggedEvent{change: change}); err != nil {
			r.logger.Warnf("failed to republish %s event %s: %v", change.Type, id, err)
		}
	}
	return nil
}

// StoreEvent appends one change to its collection's stream and returns the entry id.
func (r *RedisEventStore) StoreEvent(ctx context.Context, event model.ChangeEvent) (string, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		r.logger.Errorf("failed to serialize change data: %v", err)
		return "", err
	}

	stream := r.StreamName(event.Collection)
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"eventId":      event.EventID,
			"type":         string(event.Type),
			"collection":   event.Collection,
			"docId":        event.DocID,
			"data":         data,
			"occurredAt":   event.OccurredAt.UnixNano(),
			"affectedRows": event.AffectedRows,
		},
	}
	if r.maxLength > 0 {
		args.MaxLen = r.maxLength
		args.Approx = true
	}

	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		r.logger.WithFields(map[string]interface{}{
			"stream": stream,
			"type":   string(event.Type),
		}).Errorf("failed to append change event: %v", err)
		return "", err
	}

	r.logger.WithFields(map[string]interface{}{
		"stream":    stream,
		"doc_id":    event.DocID,
		"stream_id": id,
	}).Debugf("stored %s event", event.Type)
	return id, nil
}

// GetEventsSince reads up to count events of a collection after the given stream id,
// each with StreamID set. An empty id reads from the start of the stream.
func (r *RedisEventStore) GetEventsSince(ctx context.Context, collection, afterID string, count int64) ([]model.ChangeEvent, error) {
	stream := r.StreamName(collection)
	start := "-"
	if afterID != "" {
		start = "(" + afterID
	}
	if count <= 0 {
		count = 1000
	}

	msgs, err := r.client.XRangeN(ctx, stream, start, "+", count).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.ChangeEvent{}, nil
		}
		r.logger.WithFields(map[string]interface{}{"stream": stream}).Errorf("failed to read change events: %v", err)
		return nil, err
	}

	events := make([]model.ChangeEvent, 0, len(msgs))
	for _, msg := range msgs {
		ev, err := parseChangeMessage(msg)
		if err != nil {
			r.logger.Warnf("skipping unreadable stream entry %s: %v", msg.ID, err)
			continue
		}
		ev.StreamID = msg.ID
		events = append(events, ev)
	}
	return events, nil
}

func parseChangeMessage(msg redis.XMessage) (model.ChangeEvent, error) {
	ev := model.ChangeEvent{
		EventID:    stringValue(msg.Values["eventId"]),
		Type:       model.ChangeType(stringValue(msg.Values["type"])),
		Collection: stringValue(msg.Values["collection"]),
		DocID:      stringValue(msg.Values["docId"]),
	}
	if ev.Collection == "" || ev.Type == "" {
		return ev, fmt.Errorf("entry has no collection or type")
	}

	if ts, err := strconv.ParseInt(stringValue(msg.Values["occurredAt"]), 10, 64); err == nil {
		ev.OccurredAt = time.Unix(0, ts).UTC()
	}
	if n, err := strconv.ParseInt(stringValue(msg.Values["affectedRows"]), 10, 64); err == nil {
		ev.AffectedRows = n
	}
	if raw := stringValue(msg.Values["data"]); raw != "" && raw != "null" {
		var data model.Record
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return ev, fmt.Errorf("invalid data payload: %w", err)
		}
		ev.Data = data
	}
	return ev, nil
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
