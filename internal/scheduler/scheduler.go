// Package scheduler drives the engine's periodic tasks. It deliberately
// has no cron syntax: each task is parameterized by a plain interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one periodic job. Run receives a context that is canceled when
// the scheduler stops.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running atomic.Bool
}

// Scheduler ticks each task on its own goroutine. Tasks never block each
// other; ticks of the same task never overlap (an in-flight run makes the
// next tick a skip). Per-tick errors go to the observer instead of being
// dropped.
type Scheduler struct {
	tasks    []*Task
	onError  func(task string, err error)
	logger   *slog.Logger
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds a scheduler. onError may be nil; errors are always logged.
func New(logger *slog.Logger, onError func(task string, err error)) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		onError: onError,
		logger:  logger.With("component", "scheduler"),
	}
}

// Add registers a task. All tasks must be added before Start.
func (s *Scheduler) Add(t *Task) error {
	if s.quit != nil {
		return errors.New("scheduler already started")
	}
	if t.Name == "" {
		return errors.New("task requires a name")
	}
	if t.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be > 0", t.Name)
	}
	if t.Run == nil {
		return fmt.Errorf("task %s: nil run func", t.Name)
	}
	for _, existing := range s.tasks {
		if existing.Name == t.Name {
			return fmt.Errorf("duplicate task name %s", t.Name)
		}
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start launches one ticker loop per task.
func (s *Scheduler) Start() error {
	if s.quit != nil {
		return errors.New("scheduler already started")
	}
	s.quit = make(chan struct{})
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.runTask(t)
	}
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	return nil
}

func (s *Scheduler) runTask(t *Task) {
	defer s.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.quit
		cancel()
	}()
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			// skip the tick if the previous run is still in flight
			if !t.running.CompareAndSwap(false, true) {
				s.logger.Debug("tick skipped, previous run in flight", "task", t.Name)
				continue
			}
			go func() {
				defer t.running.Store(false)
				if err := t.Run(ctx); err != nil {
					s.logger.Warn("task run failed", "task", t.Name, "error", err)
					if s.onError != nil {
						s.onError(t.Name, err)
					}
				}
			}()
		}
	}
}

// Stop cancels all task loops and waits for the loops (not in-flight runs)
// to exit. Safe to call more than once.
func (s *Scheduler) Stop() {
	if s.quit == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}
