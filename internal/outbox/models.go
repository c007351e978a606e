// Package outbox implements the transactional outbox for ledger events.
//
// Events are written to the outbox inside the same transaction as the state
// change that produced them, so an event exists if and only if its operation
// committed. The Relay then publishes unpublished entries to a Publisher
// (Kafka in production) and marks them published. Delivery is at-least-once:
// a crash between publish and mark republishes the batch, and consumers
// dedupe on Entry.ID.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the minimum an outbox payload must describe about itself.
type Event interface {
	EventType() string
	AggregateID() string
}

// Entry is one outbox row.
type Entry struct {
	ID          uuid.UUID
	EventType   string
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewEntry serializes event into an outbox entry.
func NewEntry(event Event, now time.Time) (Entry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}
	return Entry{
		ID:          uuid.New(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		Payload:     payload,
		CreatedAt:   now,
	}, nil
}

// Writer appends entries inside a transaction.
type Writer interface {
	Append(ctx context.Context, entries ...Entry) error
}

// Source is what the relay drains.
type Source interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	PurgePublished(ctx context.Context, before time.Time) (int, error)
}

// Publisher delivers entries to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, entries []Entry) error
	Close() error
}
