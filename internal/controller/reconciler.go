package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hostling/hostling/internal/history"
	"github.com/hostling/hostling/internal/metrics"
	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
)

// Reconciler makes the registry converge toward the desired status in the
// store: any record whose desired status is the active variant and which
// has no live handle gets started from its persisted file path and config.
//
// By default it only heals; it never revokes. With RevokeOrphans set it
// also stops handles whose record has since been set to the stopped
// variant, closing the gap in the other direction.
type Reconciler struct {
	c      *Controller
	revoke bool
	logger *slog.Logger
}

func NewReconciler(c *Controller, revokeOrphans bool, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{c: c, revoke: revokeOrphans, logger: logger.With("component", "reconciler")}
}

// Sweep runs one reconciliation pass. A failure on one record never blocks
// the rest of the batch; per-entry errors are joined for the observer.
func (r *Reconciler) Sweep(ctx context.Context) error {
	var errs []error
	for _, kind := range resource.Kinds() {
		recs, err := r.c.Store().ListByDesiredStatus(ctx, kind.ActiveStatus())
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s records: %w", kind, err))
			continue
		}
		for _, rec := range recs {
			if r.c.Registry().Has(rec.ID) {
				continue
			}
			ok, err := r.c.Start(ctx, resource.SpecOf(rec))
			if err != nil {
				r.logger.Warn("heal start failed", "id", rec.ID, "kind", rec.Kind, "error", err)
				errs = append(errs, fmt.Errorf("heal %s: %w", rec.ID, err))
				continue
			}
			if ok {
				metrics.IncReconcileHeal(string(rec.Kind))
				r.c.emit(history.EventHeal, rec.ID, rec.Kind, "")
				r.logger.Info("healed missing resource", "id", rec.ID, "kind", rec.Kind)
			}
		}
	}
	if r.revoke {
		errs = append(errs, r.revokeOrphans(ctx)...)
	}
	return errors.Join(errs...)
}

// revokeOrphans stops handles whose record explicitly asks for the stopped
// variant. Records in error or deleted records are left alone: revocation
// only acts on an unambiguous operator intent.
func (r *Reconciler) revokeOrphans(ctx context.Context) []error {
	var errs []error
	for _, h := range r.c.Registry().Snapshot() {
		rec, err := r.c.Store().Get(ctx, h.ID)
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Debug("live handle without record, leaving to external cleanup", "id", h.ID)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("revoke check %s: %w", h.ID, err))
			continue
		}
		if rec.DesiredStatus != h.Kind.StoppedStatus() {
			continue
		}
		if _, err := r.c.Stop(ctx, h.ID); err != nil {
			errs = append(errs, fmt.Errorf("revoke %s: %w", h.ID, err))
			continue
		}
		r.logger.Info("revoked orphan handle", "id", h.ID, "kind", h.Kind)
	}
	return errs
}
