package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Drain stops every live handle, tolerating individual failures: each
// entry is attempted, errors are collected and logged, and the overall
// pass is bounded by ctx's deadline so shutdown cannot hang on one
// resource. Stops run sequentially; per-id serialization makes concurrent
// draining pointless at the registry sizes this engine manages.
func (c *Controller) Drain(ctx context.Context) error {
	handles := c.reg.Snapshot()
	sort.Slice(handles, func(i, j int) bool { return handles[i].ID < handles[j].ID })
	var errs []error
	for _, h := range handles {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("drain aborted with %d handles remaining: %w", c.reg.Len(), ctx.Err()))
			break
		}
		if _, err := c.Stop(ctx, h.ID); err != nil {
			c.logger.Error("drain: stop failed", "id", h.ID, "error", err)
			errs = append(errs, fmt.Errorf("drain %s: %w", h.ID, err))
		}
	}
	return errors.Join(errs...)
}
