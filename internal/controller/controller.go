// Package controller owns the lifecycle of hosted resources: serialized
// start/stop/restart per id, the health monitor, the reconciler, and the
// shutdown drain. All of them operate against one shared registry.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hostling/hostling/internal/history"
	"github.com/hostling/hostling/internal/metrics"
	"github.com/hostling/hostling/internal/registry"
	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
	"github.com/hostling/hostling/internal/supervise"
)

const (
	DefaultRestartCooldown = 2 * time.Second
	DefaultStopWait        = 3 * time.Second
)

// ErrClosed is returned for operations on a controller after Close.
var ErrClosed = errors.New("controller closed")

// Options configures a Controller. Store, Registry, and Spawners are
// required; the rest default.
type Options struct {
	Store           store.Store
	Registry        *registry.Registry
	Spawners        supervise.Spawners
	Sinks           []history.Sink
	Logger          *slog.Logger
	RestartCooldown time.Duration
	StopWait        time.Duration
}

// Controller serializes lifecycle operations per resource id via one
// control goroutine per id; operations on different ids run independently.
type Controller struct {
	st       store.Store
	reg      *registry.Registry
	spawners supervise.Spawners
	sinks    []history.Sink
	logger   *slog.Logger
	cooldown time.Duration
	stopWait time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	actors map[string]*actor
}

func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RestartCooldown <= 0 {
		opts.RestartCooldown = DefaultRestartCooldown
	}
	if opts.StopWait <= 0 {
		opts.StopWait = DefaultStopWait
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		st:       opts.Store,
		reg:      opts.Registry,
		spawners: opts.Spawners,
		sinks:    opts.Sinks,
		logger:   opts.Logger.With("component", "controller"),
		cooldown: opts.RestartCooldown,
		stopWait: opts.StopWait,
		ctx:      ctx,
		cancel:   cancel,
		actors:   make(map[string]*actor),
	}
}

// Registry exposes the shared registry to the monitor/reconciler/drain.
func (c *Controller) Registry() *registry.Registry { return c.reg }

// Store exposes the lifecycle record store.
func (c *Controller) Store() store.Store { return c.st }

// Start brings the resource up. It returns (false, nil) when a handle for
// the id already exists, and (false, err) on operational failure, in which
// case the record is marked error and no handle is inserted.
func (c *Controller) Start(ctx context.Context, spec resource.Spec) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}
	return c.dispatch(ctx, spec.ID, ctrlMsg{op: opStart, spec: spec})
}

// Stop takes the resource down. It returns (false, nil) when no handle
// exists. The handle is only removed after the stop side effects ran.
func (c *Controller) Stop(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("resource id required")
	}
	return c.dispatch(ctx, id, ctrlMsg{op: opStop})
}

// Restart is stop, a fixed cooldown, then start. It returns the start
// result; a stop that found nothing to stop does not abort it.
func (c *Controller) Restart(ctx context.Context, spec resource.Spec) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}
	return c.dispatch(ctx, spec.ID, ctrlMsg{op: opRestart, spec: spec})
}

// MarkError persists desired status error for id and emits a fault event.
// Used when the engine gives up on a resource.
func (c *Controller) MarkError(ctx context.Context, id string, kind resource.Kind, detail string) error {
	c.emit(history.EventFault, id, kind, detail)
	if err := c.st.SetStatus(ctx, id, resource.StatusError); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("mark %s error: %w", id, err)
	}
	return nil
}

// Close tears down all per-id control goroutines. In-flight operations
// finish; subsequent calls fail with ErrClosed.
func (c *Controller) Close() {
	c.cancel()
}

// --- per-id control path (serialization point) ---

type ctrlOp int

const (
	opStart ctrlOp = iota
	opStop
	opRestart
)

type ctrlMsg struct {
	op    ctrlOp
	spec  resource.Spec
	reply chan ctrlResult
}

type ctrlResult struct {
	ok  bool
	err error
}

type actor struct {
	id   string
	ctrl chan ctrlMsg
}

func (c *Controller) dispatch(ctx context.Context, id string, msg ctrlMsg) (bool, error) {
	a, err := c.actorFor(id)
	if err != nil {
		return false, err
	}
	msg.reply = make(chan ctrlResult, 1)
	select {
	case a.ctrl <- msg:
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.ctx.Done():
		return false, ErrClosed
	}
	select {
	case res := <-msg.reply:
		return res.ok, res.err
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.ctx.Done():
		return false, ErrClosed
	}
}

func (c *Controller) actorFor(id string) (*actor, error) {
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.actors[id]
	if a == nil {
		a = &actor{id: id, ctrl: make(chan ctrlMsg, 16)}
		c.actors[id] = a
		go a.run(c)
	}
	return a, nil
}

func (a *actor) run(c *Controller) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-a.ctrl:
			var res ctrlResult
			switch msg.op {
			case opStart:
				res = c.doStart(c.ctx, msg.spec)
			case opStop:
				res = c.doStop(c.ctx, a.id)
			case opRestart:
				res = c.doRestart(c.ctx, msg.spec)
			}
			msg.reply <- res
		}
	}
}

// --- operations, invoked only from the owning actor ---

func (c *Controller) doStart(ctx context.Context, spec resource.Spec) ctrlResult {
	if c.reg.Has(spec.ID) {
		return ctrlResult{ok: false}
	}
	spawner := c.spawners[spec.Kind]
	if spawner == nil {
		err := fmt.Errorf("no spawner for kind %s", spec.Kind)
		c.failStart(ctx, spec, err)
		return ctrlResult{err: err}
	}
	proc, err := spawner.Spawn(ctx, supervise.Spec{
		ID:       spec.ID,
		Kind:     spec.Kind,
		FilePath: spec.FilePath,
		Config:   spec.Config,
	})
	if err != nil {
		c.failStart(ctx, spec, err)
		return ctrlResult{err: fmt.Errorf("start %s: %w", spec.ID, err)}
	}
	// Persist desired status before the handle becomes visible, so a
	// present handle always implies an active record.
	if err := c.persistDesired(ctx, spec, spec.Kind.ActiveStatus()); err != nil {
		_ = proc.Stop(c.stopWait)
		c.failStart(ctx, spec, err)
		return ctrlResult{err: fmt.Errorf("start %s: %w", spec.ID, err)}
	}
	c.reg.Put(&registry.Handle{
		ID:        spec.ID,
		Kind:      spec.Kind,
		PID:       proc.PID(),
		StartedAt: time.Now().UTC(),
		Proc:      proc,
	})
	c.updateGauges()
	metrics.IncStart(string(spec.Kind))
	c.emit(history.EventStart, spec.ID, spec.Kind, "")
	c.logger.Info("started", "id", spec.ID, "kind", spec.Kind, "pid", proc.PID())
	return ctrlResult{ok: true}
}

func (c *Controller) doStop(ctx context.Context, id string) ctrlResult {
	h, ok := c.reg.Get(id)
	if !ok {
		return ctrlResult{ok: false}
	}
	// Persist first: if the write fails the handle stays, keeping store and
	// registry consistent for the next reconciliation cycle.
	if err := c.st.SetStatus(ctx, id, h.Kind.StoppedStatus()); err != nil && !errors.Is(err, store.ErrNotFound) {
		return ctrlResult{err: fmt.Errorf("stop %s: %w", id, err)}
	}
	if err := h.Proc.Stop(c.stopWait); err != nil {
		c.logger.Warn("stop side effects incomplete", "id", id, "error", err)
	}
	c.reg.Delete(id)
	c.updateGauges()
	metrics.IncStop(string(h.Kind))
	c.emit(history.EventStop, id, h.Kind, "")
	c.logger.Info("stopped", "id", id, "kind", h.Kind)
	return ctrlResult{ok: true}
}

func (c *Controller) doRestart(ctx context.Context, spec resource.Spec) ctrlResult {
	stopped := c.doStop(ctx, spec.ID)
	if stopped.err != nil {
		c.logger.Warn("restart: stop failed, attempting start anyway", "id", spec.ID, "error", stopped.err)
	}
	// Cooldown between stop and start avoids restart thrashing. The actor
	// blocks here, which is intended: operations on this id stay serialized.
	select {
	case <-time.After(c.cooldown):
	case <-ctx.Done():
		return ctrlResult{err: ctx.Err()}
	}
	res := c.doStart(ctx, spec)
	if res.ok {
		metrics.IncRestart(string(spec.Kind))
		c.emit(history.EventRestart, spec.ID, spec.Kind, "")
	}
	return res
}

// persistDesired updates the record's desired status, creating the record
// when the id is not stored yet (direct embedding without a CRUD layer).
func (c *Controller) persistDesired(ctx context.Context, spec resource.Spec, status resource.Status) error {
	err := c.st.SetStatus(ctx, spec.ID, status)
	if errors.Is(err, store.ErrNotFound) {
		return c.st.Put(ctx, resource.Record{
			ID:            spec.ID,
			Kind:          spec.Kind,
			DesiredStatus: status,
			FilePath:      spec.FilePath,
			Config:        spec.Config,
		})
	}
	return err
}

func (c *Controller) failStart(ctx context.Context, spec resource.Spec, cause error) {
	c.logger.Error("start failed", "id", spec.ID, "kind", spec.Kind, "error", cause)
	if err := c.st.SetStatus(ctx, spec.ID, resource.StatusError); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Error("marking record error failed", "id", spec.ID, "error", err)
	}
	c.emit(history.EventFault, spec.ID, spec.Kind, cause.Error())
}

func (c *Controller) emit(t history.EventType, id string, kind resource.Kind, detail string) {
	if len(c.sinks) == 0 {
		return
	}
	e := history.NewEvent(t, id, kind, detail)
	for _, s := range c.sinks {
		if err := s.Send(c.ctx, e); err != nil {
			c.logger.Warn("history sink send failed", "type", t, "id", id, "error", err)
		}
	}
}

func (c *Controller) updateGauges() {
	counts := c.reg.CountByKind()
	for _, k := range resource.Kinds() {
		metrics.SetRunning(string(k), counts[k])
	}
}
