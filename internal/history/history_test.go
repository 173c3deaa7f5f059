package history

import (
	"testing"

	"github.com/google/uuid"

	"github.com/hostling/hostling/internal/resource"
)

func TestNewEventStampsIDAndTime(t *testing.T) {
	e := NewEvent(EventRestart, "b1", resource.KindBot, "health fault")
	if _, err := uuid.Parse(e.ID); err != nil {
		t.Fatalf("event id %q is not a uuid: %v", e.ID, err)
	}
	if e.Type != EventRestart || e.ResourceID != "b1" || e.Kind != resource.KindBot {
		t.Fatalf("event fields: %+v", e)
	}
	if e.OccurredAt.IsZero() {
		t.Fatalf("event time not stamped")
	}
	if e.Detail != "health fault" {
		t.Fatalf("detail = %q", e.Detail)
	}

	other := NewEvent(EventStart, "b1", resource.KindBot, "")
	if other.ID == e.ID {
		t.Fatalf("event ids must be unique")
	}
}
