package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hostling/hostling/internal/metrics"
	"github.com/hostling/hostling/internal/probe"
	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
)

const (
	DefaultMaxRestartAttempts = 5
	DefaultRestartBackoff     = 500 * time.Millisecond
	DefaultRestartBackoffCap  = 30 * time.Second
)

// MonitorOptions configures the health monitor.
type MonitorOptions struct {
	Checker            probe.Checker
	MaxRestartAttempts int
	RestartBackoff     time.Duration
	RestartBackoffCap  time.Duration
	Logger             *slog.Logger
}

// Monitor sweeps the registry on a cadence, probes each handle, and
// restarts faulted entries. Repeated restart failures back off
// exponentially and are abandoned after MaxRestartAttempts, at which point
// the record is marked error and left to the operator.
type Monitor struct {
	c           *Controller
	checker     probe.Checker
	maxAttempts int
	backoff     time.Duration
	backoffCap  time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	failures map[string]*restartState
}

type restartState struct {
	kind     resource.Kind
	attempts int
	nextTry  time.Time
}

func NewMonitor(c *Controller, opts MonitorOptions) *Monitor {
	if opts.Checker == nil {
		opts.Checker = probe.ProcChecker{}
	}
	if opts.MaxRestartAttempts <= 0 {
		opts.MaxRestartAttempts = DefaultMaxRestartAttempts
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = DefaultRestartBackoff
	}
	if opts.RestartBackoffCap <= 0 {
		opts.RestartBackoffCap = DefaultRestartBackoffCap
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Monitor{
		c:           c,
		checker:     opts.Checker,
		maxAttempts: opts.MaxRestartAttempts,
		backoff:     opts.RestartBackoff,
		backoffCap:  opts.RestartBackoffCap,
		logger:      opts.Logger.With("component", "health"),
		failures:    make(map[string]*restartState),
	}
}

// Sweep probes every live handle once. A fault in one entry never aborts
// the rest; per-entry errors are joined into the return value so the
// scheduler's observer sees them.
func (m *Monitor) Sweep(ctx context.Context) error {
	var errs []error
	live := make(map[string]bool)
	for _, h := range m.c.Registry().Snapshot() {
		live[h.ID] = true
		healthy, err := m.checker.Healthy(ctx, h)
		if err != nil {
			m.logger.Warn("health probe error, treating as fault", "id", h.ID, "probe", m.checker.Describe(), "error", err)
			healthy = false
		}
		if healthy {
			m.clear(h.ID)
			continue
		}
		metrics.IncHealthFault(string(h.Kind))
		if err := m.handleFault(ctx, h.ID, h.Kind); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.ID, err))
		}
	}
	// A failed restart leaves no handle behind, so tracked failures whose
	// id no longer appears in the registry are retried here.
	for id, kind := range m.pending(live) {
		if err := m.handleFault(ctx, id, kind); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// pending returns tracked failures without a live handle.
func (m *Monitor) pending(live map[string]bool) map[string]resource.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]resource.Kind)
	for id, st := range m.failures {
		if !live[id] {
			out[id] = st.kind
		}
	}
	return out
}

func (m *Monitor) handleFault(ctx context.Context, id string, kind resource.Kind) error {
	st := m.state(id, kind)
	if st.attempts >= m.maxAttempts {
		m.logger.Error("giving up after repeated restart failures", "id", id, "attempts", st.attempts)
		if _, err := m.c.Stop(ctx, id); err != nil {
			m.logger.Warn("stop of abandoned resource failed", "id", id, "error", err)
		}
		m.clear(id)
		return m.c.MarkError(ctx, id, kind, fmt.Sprintf("abandoned after %d failed restarts", st.attempts))
	}
	if !st.nextTry.IsZero() && time.Now().Before(st.nextTry) {
		return nil // still backing off
	}
	spec, desired, err := m.specFor(ctx, id, kind)
	if err != nil {
		m.fail(id, st)
		return err
	}
	if desired == kind.StoppedStatus() {
		// The operator revoked it while we were retrying; stop chasing it.
		m.clear(id)
		return nil
	}
	m.logger.Warn("health fault detected, restarting", "id", id, "kind", kind, "attempt", st.attempts+1)
	ok, err := m.c.Restart(ctx, spec)
	if err != nil || !ok {
		m.fail(id, st)
		if err == nil {
			err = errors.New("restart did not yield a running handle")
		}
		return err
	}
	m.clear(id)
	return nil
}

// specFor rebuilds the start spec from the stored record so a restart uses
// the persisted file path and config, not stale in-memory values. It also
// reports the record's current desired status.
func (m *Monitor) specFor(ctx context.Context, id string, kind resource.Kind) (resource.Spec, resource.Status, error) {
	rec, err := m.c.Store().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return resource.Spec{ID: id, Kind: kind}, kind.ActiveStatus(), nil
	}
	if err != nil {
		return resource.Spec{}, "", err
	}
	return resource.SpecOf(rec), rec.DesiredStatus, nil
}

func (m *Monitor) state(id string, kind resource.Kind) *restartState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.failures[id]
	if st == nil {
		st = &restartState{kind: kind}
		m.failures[id] = st
	}
	return st
}

func (m *Monitor) fail(id string, st *restartState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.attempts++
	delay := m.backoff << (st.attempts - 1)
	if delay > m.backoffCap || delay <= 0 {
		delay = m.backoffCap
	}
	st.nextTry = time.Now().Add(delay)
}

func (m *Monitor) clear(id string) {
	m.mu.Lock()
	delete(m.failures, id)
	m.mu.Unlock()
}
