package model

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventKind is the class of a trigger event.
type EventKind string

const (
	EventSourceStarted EventKind = "source_started"
	EventSourceEnded   EventKind = "source_ended"
)

// Event is a trigger notification keyed by source id.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	SourceID  string    `json:"source_id"`
	Timestamp int64     `json:"timestamp"` // unix milliseconds
}

// NewEvent creates an Event with a fresh ULID.
func NewEvent(kind EventKind, sourceID string) (Event, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return Event{}, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return Event{
		ID:        id.String(),
		Kind:      kind,
		SourceID:  sourceID,
		Timestamp: now.UnixMilli(),
	}, nil
}

// Time returns the event timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// String returns a short human-readable representation.
func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.SourceID)
}
