package model

import "time"

// ChangeType describes what happened to a document.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// EventTypeDocumentChanged is the event-bus topic every ChangeEvent is published on.
const EventTypeDocumentChanged = "docstore.document.changed"

// EventTypeDocumentLogged carries a ChangeEvent again once the change log has stored it,
// with StreamID set.
const EventTypeDocumentLogged = "docstore.document.logged"

// ChangeEvent is emitted after a successful single-document write.
type ChangeEvent struct {
	EventID      string     `json:"eventId"`
	Type         ChangeType `json:"type"`
	Collection   string     `json:"collection"`
	DocID        string     `json:"docId"`
	Data         Record     `json:"data,omitempty"`
	OccurredAt   time.Time  `json:"occurredAt"`
	AffectedRows int64      `json:"affectedRows"`
	// StreamID is the event's position in the collection's change log. Clients resume
	// a feed after it. Empty when no change log is configured.
	StreamID string `json:"streamId,omitempty"`
}
