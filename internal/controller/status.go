package controller

import (
	"context"
	"time"

	"github.com/hostling/hostling/internal/resource"
)

// ResourceStatus joins the durable record with the live registry view.
type ResourceStatus struct {
	resource.Record
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Status returns the combined desired/actual state for one resource.
func (c *Controller) Status(ctx context.Context, id string) (ResourceStatus, error) {
	rec, err := c.st.Get(ctx, id)
	if err != nil {
		return ResourceStatus{}, err
	}
	st := ResourceStatus{Record: rec}
	if h, ok := c.reg.Get(id); ok {
		st.Running = true
		st.PID = h.PID
		st.StartedAt = h.StartedAt
	}
	return st, nil
}

// List returns the combined state of every stored resource.
func (c *Controller) List(ctx context.Context) ([]ResourceStatus, error) {
	recs, err := c.st.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ResourceStatus, 0, len(recs))
	for _, rec := range recs {
		st := ResourceStatus{Record: rec}
		if h, ok := c.reg.Get(rec.ID); ok {
			st.Running = true
			st.PID = h.PID
			st.StartedAt = h.StartedAt
		}
		out = append(out, st)
	}
	return out, nil
}
