package events

import (
	"context"
	"time"
)

const (
	TypeTurnCompleted    = "turn.completed"
	TypeTurnUnpersisted  = "turn.unpersisted"
	TypeKnowledgeIndexed = "knowledge.indexed"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "turn.completed").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is a plain Event value.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher is implemented by the NATS publisher and by NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// TurnCompleted reports a stored turn.
func TurnCompleted(sessionID string, sequence int64, source string, chunksUsed int, elapsed time.Duration) Event {
	return BaseEvent{
		Type: TypeTurnCompleted,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"sequence":    sequence,
			"source":      source,
			"chunks_used": chunksUsed,
			"elapsed_ms":  elapsed.Milliseconds(),
		},
		OccurredAt: time.Now(),
	}
}

// TurnUnpersisted reports an answered turn whose append failed.
func TurnUnpersisted(sessionID string, sequence int64, retryKey string) Event {
	return BaseEvent{
		Type: TypeTurnUnpersisted,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"sequence":   sequence,
			"retry_key":  retryKey,
		},
		OccurredAt: time.Now(),
	}
}

// KnowledgeIndexed reports a document written to the index.
func KnowledgeIndexed(documentID, title string, chunks int) Event {
	return BaseEvent{
		Type: TypeKnowledgeIndexed,
		Data: map[string]interface{}{
			"document_id": documentID,
			"title":       title,
			"chunks":      chunks,
		},
		OccurredAt: time.Now(),
	}
}
