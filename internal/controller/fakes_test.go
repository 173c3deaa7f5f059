package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hostling/hostling/internal/history"
	"github.com/hostling/hostling/internal/registry"
	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
	"github.com/hostling/hostling/internal/supervise"
)

// memStore is an in-memory store.Store with injectable failures.
type memStore struct {
	mu            sync.Mutex
	recs          map[string]resource.Record
	failSetStatus error
	failPut       error
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]resource.Record)}
}

func (m *memStore) EnsureSchema(context.Context) error { return nil }

func (m *memStore) Put(_ context.Context, rec resource.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.recs[rec.ID] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return resource.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) List(context.Context) ([]resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]resource.Record, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) ListByDesiredStatus(_ context.Context, status resource.Status) ([]resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []resource.Record
	for _, rec := range m.recs {
		if rec.DesiredStatus == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, id string, status resource.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetStatus != nil {
		return m.failSetStatus
	}
	rec, ok := m.recs[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.DesiredStatus = status
	rec.UpdatedAt = time.Now().UTC()
	m.recs[id] = rec
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *memStore) PutSession(context.Context, store.Session) error { return nil }

func (m *memStore) CleanupExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memStore) Snapshot(context.Context, string) error { return store.ErrSnapshotUnsupported }

func (m *memStore) Close() error { return nil }

func (m *memStore) status(id string) resource.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[id].DesiredStatus
}

func (m *memStore) setFailSetStatus(err error) {
	m.mu.Lock()
	m.failSetStatus = err
	m.mu.Unlock()
}

// fakeProc is a controllable supervise.Proc.
type fakeProc struct {
	pid int

	mu      sync.Mutex
	alive   bool
	stopped bool
}

func (p *fakeProc) PID() int { return p.pid }

func (p *fakeProc) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProc) Stop(time.Duration) error {
	p.mu.Lock()
	p.alive = false
	p.stopped = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProc) kill() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

func (p *fakeProc) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// fakeSpawner hands out fakeProcs with increasing pids and can be told to
// fail all further spawns.
type fakeSpawner struct {
	mu      sync.Mutex
	nextPID int
	spawned []*fakeProc
	err     error
}

func newFakeSpawner() *fakeSpawner { return &fakeSpawner{nextPID: 1000} }

func (s *fakeSpawner) Spawn(context.Context, supervise.Spec) (supervise.Proc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.nextPID++
	p := &fakeProc{pid: s.nextPID, alive: true}
	s.spawned = append(s.spawned, p)
	return p, nil
}

func (s *fakeSpawner) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSpawner) last() *fakeProc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spawned) == 0 {
		return nil
	}
	return s.spawned[len(s.spawned)-1]
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}

// captureSink records every event it is sent.
type captureSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (c *captureSink) Send(_ context.Context, e history.Event) error {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) typesFor(id string) []history.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []history.EventType
	for _, e := range c.events {
		if e.ResourceID == id {
			out = append(out, e.Type)
		}
	}
	return out
}

// erroringChecker fails every probe with an error.
type erroringChecker struct{}

func (erroringChecker) Healthy(context.Context, *registry.Handle) (bool, error) {
	return false, errInjected
}

func (erroringChecker) Describe() string { return "erroring" }

var errInjected = errors.New("injected failure")
