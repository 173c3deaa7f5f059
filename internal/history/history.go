package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hostling/hostling/internal/resource"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart   EventType = "start"
	EventStop    EventType = "stop"
	EventRestart EventType = "restart"
	EventFault   EventType = "fault"
	EventHeal    EventType = "heal"
)

// Event represents a lifecycle event exported to external systems.
type Event struct {
	ID         string        `json:"id"`
	Type       EventType     `json:"type"`
	ResourceID string        `json:"resource_id"`
	Kind       resource.Kind `json:"kind"`
	OccurredAt time.Time     `json:"occurred_at"`
	Detail     string        `json:"detail,omitempty"`
}

// NewEvent builds an event stamped with a fresh id and the current time.
func NewEvent(t EventType, id string, kind resource.Kind, detail string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ResourceID: id,
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Detail:     detail,
	}
}

// Sink is a destination for lifecycle events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
