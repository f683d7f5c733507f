package history

import (
	"context"
	"errors"
	"time"

	"github.com/loykin/proctrack/internal/store"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventCreated   EventType = "created"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
)

// Event is one accepted registry write, exported to external systems.
// Record carries the fields known to the writer at that moment, not a
// re-read of the row.
type Event struct {
	Type       EventType    `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Record     store.Record `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans one event out to several sinks. Every sink is attempted; the
// returned error joins all failures.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
