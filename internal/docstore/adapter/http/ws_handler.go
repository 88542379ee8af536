package http

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/shared/eventbus"
	"mission-control/internal/shared/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CollectionLookup reports whether a collection is registered.
type CollectionLookup interface {
	Collections() []string
}

// ChangeLog serves stored changes, with StreamID set, to feeds resuming after a stream id.
type ChangeLog interface {
	GetEventsSince(ctx context.Context, collection, afterID string, count int64) ([]model.ChangeEvent, error)
}

const replayBatch = 500

// WebSocketHandler streams change events for one collection per connection.
type WebSocketHandler struct {
	bus        eventbus.EventBusInterface
	lookup     CollectionLookup
	changeLog  ChangeLog
	topic      string
	bufferSize int
	log        logger.Logger
}

// NewWebSocketHandler creates a WebSocketHandler. bufferSize bounds the events queued for
// a slow client; further events are dropped.
func NewWebSocketHandler(bus eventbus.EventBusInterface, lookup CollectionLookup, bufferSize int, log logger.Logger) *WebSocketHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &WebSocketHandler{
		bus:        bus,
		lookup:     lookup,
		topic:      model.EventTypeDocumentChanged,
		bufferSize: bufferSize,
		log:        log.WithComponent("websocket"),
	}
}

// UseChangeLog switches feeds to logged changes, which carry stream ids, and lets
// clients resume with ?after=<streamId>.
func (h *WebSocketHandler) UseChangeLog(changeLog ChangeLog) {
	h.changeLog = changeLog
	h.topic = model.EventTypeDocumentLogged
}

// RegisterRoutes mounts the feed at path/:name, e.g. /ws/collections/satellites.
func (h *WebSocketHandler) RegisterRoutes(router fiber.Router, path string) {
	router.Use(path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get(path+"/:name", websocket.New(h.handleConnection))
}

// WebSocketMessage is the frame sent to clients.
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// feed forwards the changes of one collection into a bounded channel.
type feed struct {
	collection string
	events     chan model.ChangeEvent
	dropped    int64
	log        logger.Logger
}

func newFeed(collection string, size int, log logger.Logger) *feed {
	return &feed{collection: collection, events: make(chan model.ChangeEvent, size), log: log}
}

// deliver is the bus handler. It never blocks the publisher.
func (f *feed) deliver(ctx context.Context, event eventbus.Event) error {
	change, ok := event.Data().(model.ChangeEvent)
	if !ok || change.Collection != f.collection {
		return nil
	}
	select {
	case f.events <- change:
	default:
		n := atomic.AddInt64(&f.dropped, 1)
		f.log.Warnf("client queue full for %s, dropped %d events so far", f.collection, n)
	}
	return nil
}

func (h *WebSocketHandler) known(name string) bool {
	for _, c := range h.lookup.Collections() {
		if c == name {
			return true
		}
	}
	return false
}

func (h *WebSocketHandler) handleConnection(conn *websocket.Conn) {
	name := conn.Params("name")
	subscriberID := uuid.NewString()
	log := h.log.WithFields(map[string]interface{}{"collection": name, "subscriber_id": subscriberID})

	if !h.known(name) {
		_ = conn.WriteJSON(WebSocketMessage{Type: "error", Data: fiber.Map{"code": "UNKNOWN_COLLECTION", "collection": name}})
		_ = conn.Close()
		return
	}

	f := newFeed(name, h.bufferSize, log)
	subID := h.bus.Subscribe(h.topic, f.deliver)
	defer h.bus.Unsubscribe(h.topic, subID)
	log.Info("change feed opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The read loop only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	after := conn.Query("after")
	resumed := after != "" && h.changeLog != nil
	if err := conn.WriteJSON(WebSocketMessage{Type: "subscribed", Data: fiber.Map{"collection": name, "resumed": resumed}}); err != nil {
		return
	}

	last := after
	if resumed {
		var (
			n   int
			err error
		)
		last, n, err = h.replay(ctx, conn, name, after)
		if err != nil {
			log.Warnf("replay after %s failed: %v", after, err)
			return
		}
		log.Debugf("replayed %d changes after %s", n, after)
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("change feed closed")
			return
		case change := <-f.events:
			// Live changes logged while the replay ran were already sent.
			if last != "" && change.StreamID != "" && !streamIDAfter(change.StreamID, last) {
				continue
			}
			if err := conn.WriteJSON(WebSocketMessage{Type: "change", Data: change}); err != nil {
				log.Debugf("write failed: %v", err)
				return
			}
			if change.StreamID != "" {
				last = change.StreamID
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// replay sends every logged change after the given stream id and returns the last id sent.
func (h *WebSocketHandler) replay(ctx context.Context, conn *websocket.Conn, collection, after string) (string, int, error) {
	last, sent := after, 0
	for {
		events, err := h.changeLog.GetEventsSince(ctx, collection, last, replayBatch)
		if err != nil {
			return last, sent, err
		}
		for _, ev := range events {
			if err := conn.WriteJSON(WebSocketMessage{Type: "change", Data: ev}); err != nil {
				return last, sent, err
			}
			last = ev.StreamID
			sent++
		}
		if len(events) < replayBatch {
			return last, sent, nil
		}
	}
}

// streamIDAfter orders Redis stream ids of the form <ms>-<seq>.
func streamIDAfter(id, than string) bool {
	idMs, idSeq := splitStreamID(id)
	thanMs, thanSeq := splitStreamID(than)
	if idMs != thanMs {
		return idMs > thanMs
	}
	return idSeq > thanSeq
}

func splitStreamID(id string) (uint64, uint64) {
	ms, seq, _ := strings.Cut(id, "-")
	m, _ := strconv.ParseUint(ms, 10, 64)
	n, _ := strconv.ParseUint(seq, 10, 64)
	return m, n
}
