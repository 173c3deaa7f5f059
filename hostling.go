// Package hostling is a lifecycle reconciliation engine for hosted bots and
// static websites: periodic sweeps converge what is actually running toward
// the desired status persisted in the record store.
package hostling

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hostling/hostling/internal/backup"
	"github.com/hostling/hostling/internal/config"
	"github.com/hostling/hostling/internal/controller"
	"github.com/hostling/hostling/internal/history"
	chsink "github.com/hostling/hostling/internal/history/clickhouse"
	"github.com/hostling/hostling/internal/logger"
	"github.com/hostling/hostling/internal/metrics"
	"github.com/hostling/hostling/internal/probe"
	"github.com/hostling/hostling/internal/registry"
	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/scheduler"
	iapi "github.com/hostling/hostling/internal/server"
	"github.com/hostling/hostling/internal/store"
	"github.com/hostling/hostling/internal/store/factory"
	"github.com/hostling/hostling/internal/supervise"
)

// Re-export core types for external consumers. These are aliases, so
// conversions are zero-cost.

type (
	Kind           = resource.Kind
	Status         = resource.Status
	Record         = resource.Record
	Spec           = resource.Spec
	ResourceStatus = controller.ResourceStatus
	Config         = config.Config
	Store          = store.Store
	HistorySink    = history.Sink
	HealthChecker  = probe.Checker
	Spawner        = supervise.Spawner
)

const (
	KindBot     = resource.KindBot
	KindWebsite = resource.KindWebsite

	StatusStopped  = resource.StatusStopped
	StatusRunning  = resource.StatusRunning
	StatusError    = resource.StatusError
	StatusInactive = resource.StatusInactive
	StatusActive   = resource.StatusActive
)

// LoadConfig reads a TOML config file, applying defaults.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config { return config.Default() }

// Engine wires the controller, health monitor, reconciler, scheduler, and
// backup manager around one registry and one record store.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	st     store.Store
	reg    *registry.Registry
	ctrl   *controller.Controller
	mon    *controller.Monitor
	rec    *controller.Reconciler
	sched  *scheduler.Scheduler
	bak    *backup.Manager
	sinks  []history.Sink
}

// Option customizes Engine construction.
type Option func(*engineOpts)

type engineOpts struct {
	store    store.Store
	spawners supervise.Spawners
	checker  probe.Checker
	sinks    []history.Sink
	logger   *slog.Logger
}

// WithStore overrides the store built from config (useful for embedding
// and tests).
func WithStore(s store.Store) Option { return func(o *engineOpts) { o.store = s } }

// WithSpawner overrides the spawner for one resource kind.
func WithSpawner(k Kind, s Spawner) Option {
	return func(o *engineOpts) {
		if o.spawners == nil {
			o.spawners = make(supervise.Spawners)
		}
		o.spawners[k] = s
	}
}

// WithHealthChecker overrides the health predicate.
func WithHealthChecker(c HealthChecker) Option { return func(o *engineOpts) { o.checker = c } }

// WithHistorySinks appends lifecycle event sinks.
func WithHistorySinks(sinks ...HistorySink) Option {
	return func(o *engineOpts) { o.sinks = append(o.sinks, sinks...) }
}

// WithLogger overrides the daemon logger.
func WithLogger(l *slog.Logger) Option { return func(o *engineOpts) { o.logger = l } }

// New assembles an Engine from config. The caller owns calling
// StartScheduler and Shutdown.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var eo engineOpts
	for _, o := range opts {
		o(&eo)
	}
	log := eo.logger
	if log == nil {
		log = logger.Default(cfg.Log)
	}

	st := eo.store
	if st == nil {
		var err error
		st, err = factory.New(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	sinks := eo.sinks
	if cfg.History.ClickHouseAddr != "" {
		ch, err := chsink.New(cfg.History.ClickHouseAddr, cfg.History.ClickHouseTable)
		if err != nil {
			return nil, fmt.Errorf("clickhouse sink: %w", err)
		}
		sinks = append(sinks, ch)
	}

	spawners := eo.spawners
	if spawners == nil {
		spawners = make(supervise.Spawners)
	}
	if spawners[resource.KindBot] == nil {
		spawners[resource.KindBot] = supervise.NewExecSpawner(cfg.Log)
	}
	if spawners[resource.KindWebsite] == nil {
		spawners[resource.KindWebsite] = supervise.NewSitePublisher(cfg.Sites.PublishDir)
	}

	reg := registry.New()
	ctrl := controller.New(controller.Options{
		Store:           st,
		Registry:        reg,
		Spawners:        spawners,
		Sinks:           sinks,
		Logger:          log,
		RestartCooldown: cfg.Lifecycle.RestartCooldown,
		StopWait:        cfg.Lifecycle.StopWait,
	})

	checker := eo.checker
	if checker == nil && cfg.Lifecycle.HealthCommand != "" {
		checker = probe.CommandChecker{Command: cfg.Lifecycle.HealthCommand}
	}
	mon := controller.NewMonitor(ctrl, controller.MonitorOptions{
		Checker:            checker,
		MaxRestartAttempts: cfg.Lifecycle.MaxRestartAttempts,
		RestartBackoff:     cfg.Lifecycle.RestartBackoff,
		RestartBackoffCap:  cfg.Lifecycle.RestartBackoffCap,
		Logger:             log,
	})
	rec := controller.NewReconciler(ctrl, cfg.Lifecycle.RevokeOrphans, log)
	bak := backup.New(st, cfg.Backup.Dir, cfg.Backup.Retention, log)

	e := &Engine{
		cfg:    cfg,
		logger: log,
		st:     st,
		reg:    reg,
		ctrl:   ctrl,
		mon:    mon,
		rec:    rec,
		bak:    bak,
		sinks:  sinks,
	}
	e.sched = scheduler.New(log, nil)
	tasks := []*scheduler.Task{
		{Name: "health", Interval: cfg.Schedule.HealthInterval, Run: mon.Sweep},
		{Name: "reconcile", Interval: cfg.Schedule.ReconcileInterval, Run: rec.Sweep},
		{Name: "session-cleanup", Interval: cfg.Schedule.SessionCleanupInterval, Run: e.cleanupSessions},
		{Name: "backup", Interval: cfg.Schedule.BackupInterval, Run: bak.RunOnce},
	}
	for _, t := range tasks {
		if err := e.sched.Add(t); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Lifecycle operations, consumed synchronously by API handlers.

func (e *Engine) Start(ctx context.Context, spec Spec) (bool, error) { return e.ctrl.Start(ctx, spec) }
func (e *Engine) Stop(ctx context.Context, id string) (bool, error) { return e.ctrl.Stop(ctx, id) }
func (e *Engine) Restart(ctx context.Context, spec Spec) (bool, error) {
	return e.ctrl.Restart(ctx, spec)
}

func (e *Engine) Status(ctx context.Context, id string) (ResourceStatus, error) {
	return e.ctrl.Status(ctx, id)
}
func (e *Engine) List(ctx context.Context) ([]ResourceStatus, error) { return e.ctrl.List(ctx) }

// Store exposes the record store for the CRUD layer.
func (e *Engine) Store() Store { return e.st }

// ReconcileNow runs one reconciliation pass synchronously.
func (e *Engine) ReconcileNow(ctx context.Context) error { return e.rec.Sweep(ctx) }

// CheckHealthNow runs one health sweep synchronously.
func (e *Engine) CheckHealthNow(ctx context.Context) error { return e.mon.Sweep(ctx) }

// StartScheduler runs an initial reconciliation pass (restoring resources
// already marked active at boot) and then starts the periodic tasks.
func (e *Engine) StartScheduler(ctx context.Context) error {
	if err := e.rec.Sweep(ctx); err != nil {
		e.logger.Warn("initial reconciliation finished with errors", "error", err)
	}
	return e.sched.Start()
}

// Shutdown stops the scheduler and drains the registry: every live handle
// is stopped, failures are collected and logged, and the whole drain is
// bounded by the configured shutdown timeout.
func (e *Engine) Shutdown() error {
	e.sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Lifecycle.ShutdownTimeout)
	defer cancel()
	err := e.ctrl.Drain(ctx)
	e.ctrl.Close()
	if cerr := e.st.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (e *Engine) cleanupSessions(ctx context.Context) error {
	n, err := e.st.CleanupExpiredSessions(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		e.logger.Info("expired sessions removed", "count", n)
	}
	return nil
}

// NewHTTPServer starts an HTTP server exposing the engine's REST API.
func NewHTTPServer(addr, basePath string, e *Engine) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, e.ctrl, e.rec)
}

// NewHTTPHandler returns the REST API as an embeddable http.Handler.
func NewHTTPHandler(basePath string, e *Engine) http.Handler {
	return iapi.NewRouter(e.ctrl, e.rec, basePath).Handler()
}

// Metrics helpers (public facade).

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
