// Package backup produces timestamped snapshots of the lifecycle record
// store and prunes old ones beyond a retention count.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hostling/hostling/internal/metrics"
	"github.com/hostling/hostling/internal/store"
)

const (
	DefaultRetention = 7

	snapshotPrefix = "hostling-"
	snapshotSuffix = ".db"
	// timestamp layout sorts lexically, so retention can order by name
	timestampLayout = "20060102T150405"
)

// Manager is the backup housekeeping task.
type Manager struct {
	st        store.Store
	dir       string
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

func New(st store.Store, dir string, retention int, logger *slog.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		st:        st,
		dir:       dir,
		retention: retention,
		logger:    logger.With("component", "backup"),
		now:       time.Now,
	}
}

// RunOnce takes one snapshot and prunes beyond the retention count. Stores
// that cannot snapshot locally (postgres) are skipped with a log line.
func (m *Manager) RunOnce(ctx context.Context) error {
	if m.dir == "" {
		return errors.New("backup directory not configured")
	}
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return err
	}
	name := snapshotPrefix + m.now().UTC().Format(timestampLayout) + snapshotSuffix
	dest := filepath.Join(m.dir, name)
	if err := m.st.Snapshot(ctx, dest); err != nil {
		if errors.Is(err, store.ErrSnapshotUnsupported) {
			m.logger.Info("store does not support local snapshots, skipping backup")
			return nil
		}
		return fmt.Errorf("snapshot %s: %w", dest, err)
	}
	m.logger.Info("snapshot written", "path", dest)
	metrics.IncBackupRun()
	return m.prune()
}

// prune deletes the oldest snapshots beyond the retention count, ordered by
// the timestamp embedded in the name rather than filesystem order.
func (m *Manager) prune() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, snapshotPrefix) && strings.HasSuffix(n, snapshotSuffix) {
			names = append(names, n)
		}
	}
	if len(names) <= m.retention {
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names))) // newest first
	var errs []error
	for _, n := range names[m.retention:] {
		if err := os.Remove(filepath.Join(m.dir, n)); err != nil {
			errs = append(errs, err)
			continue
		}
		m.logger.Info("pruned old snapshot", "name", n)
	}
	return errors.Join(errs...)
}
