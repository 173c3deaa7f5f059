package backup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
	"github.com/hostling/hostling/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return st
}

func snapshotNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunOnceWritesTimestampedSnapshot(t *testing.T) {
	st := newTestStore(t)
	dir := filepath.Join(t.TempDir(), "backups")
	m := New(st, dir, 7, nil)
	m.now = func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) }

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	names := snapshotNames(t, dir)
	if len(names) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(names))
	}
	if names[0] != "hostling-20260826T120000.db" {
		t.Fatalf("snapshot name = %q", names[0])
	}
	info, err := os.Stat(filepath.Join(dir, names[0]))
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("snapshot is empty")
	}
}

func TestRetentionPrunesOldestByName(t *testing.T) {
	st := newTestStore(t)
	dir := filepath.Join(t.TempDir(), "backups")
	m := New(st, dir, 7, nil)

	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		m.now = func() time.Time { return ts }
		if err := m.RunOnce(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	names := snapshotNames(t, dir)
	if len(names) != 7 {
		t.Fatalf("got %d snapshots after pruning, want 7", len(names))
	}
	// the two oldest runs are gone
	if names[0] != "hostling-20260820T020000.db" {
		t.Fatalf("oldest kept snapshot = %q", names[0])
	}
	if names[len(names)-1] != "hostling-20260820T080000.db" {
		t.Fatalf("newest snapshot = %q", names[len(names)-1])
	}
}

func TestPruneIgnoresForeignFiles(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	m := New(st, dir, 1, nil)

	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		m.now = func() time.Time { return ts }
		if err := m.RunOnce(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("foreign file was pruned: %v", err)
	}
	names := snapshotNames(t, dir)
	if len(names) != 2 { // notes.txt + 1 retained snapshot
		t.Fatalf("dir has %v, want one snapshot plus notes.txt", names)
	}
}

func TestRunOnceSkipsUnsupportedStores(t *testing.T) {
	m := New(unsupportedStore{}, t.TempDir(), 7, nil)
	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("unsupported snapshot must be skipped, got %v", err)
	}
}

func TestRunOnceRequiresDirectory(t *testing.T) {
	m := New(unsupportedStore{}, "", 7, nil)
	if err := m.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error for empty backup dir")
	}
}

// unsupportedStore snapshots like the postgres store: not at all.
type unsupportedStore struct{}

func (unsupportedStore) EnsureSchema(context.Context) error {
	return nil
}

func (unsupportedStore) Put(context.Context, resource.Record) error {
	return nil
}

func (unsupportedStore) Get(context.Context, string) (resource.Record, error) {
	return resource.Record{}, store.ErrNotFound
}

func (unsupportedStore) List(context.Context) ([]resource.Record, error) {
	return nil, nil
}

func (unsupportedStore) ListByDesiredStatus(context.Context, resource.Status) ([]resource.Record, error) {
	return nil, nil
}

func (unsupportedStore) SetStatus(context.Context, string, resource.Status) error {
	return store.ErrNotFound
}

func (unsupportedStore) Delete(context.Context, string) error {
	return nil
}

func (unsupportedStore) PutSession(context.Context, store.Session) error {
	return nil
}

func (unsupportedStore) CleanupExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (unsupportedStore) Snapshot(context.Context, string) error {
	return store.ErrSnapshotUnsupported
}

func (unsupportedStore) Close() error {
	return nil
}
