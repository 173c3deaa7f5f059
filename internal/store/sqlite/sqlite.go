package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// Path is a filesystem path to the database file; ":memory:" works for tests.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS resources(
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			desired_status TEXT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			config TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resources_desired_status ON resources(desired_status);`,
		`CREATE TABLE IF NOT EXISTS sessions(
			token TEXT PRIMARY KEY,
			user TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Put(ctx context.Context, rec resource.Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources(id, kind, desired_status, file_path, config, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind,
			desired_status=excluded.desired_status,
			file_path=excluded.file_path,
			config=excluded.config,
			updated_at=excluded.updated_at`,
		rec.ID, string(rec.Kind), string(rec.DesiredStatus), rec.FilePath, rec.Config, rec.CreatedAt, now)
	return err
}

func (s *DB) Get(ctx context.Context, id string) (resource.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, desired_status, file_path, config, created_at, updated_at
		FROM resources WHERE id = ?`, id)
	return scanRecord(row)
}

func (s *DB) List(ctx context.Context) ([]resource.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, desired_status, file_path, config, created_at, updated_at
		FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *DB) ListByDesiredStatus(ctx context.Context, status resource.Status) ([]resource.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, desired_status, file_path, config, created_at, updated_at
		FROM resources WHERE desired_status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]resource.Record, error) {
	defer func() { _ = rows.Close() }()
	var out []resource.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *DB) SetStatus(ctx context.Context, id string, status resource.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE resources SET desired_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DB) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	return err
}

func (s *DB) PutSession(ctx context.Context, sess store.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(token, user, expires_at) VALUES(?,?,?)
		ON CONFLICT(token) DO UPDATE SET user=excluded.user, expires_at=excluded.expires_at`,
		sess.Token, sess.User, sess.ExpiresAt.UTC())
	return err
}

func (s *DB) CleanupExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Snapshot produces a consistent copy of the database via VACUUM INTO.
func (s *DB) Snapshot(ctx context.Context, destPath string) error {
	if strings.ContainsRune(destPath, '\'') {
		return fmt.Errorf("invalid snapshot path %q", destPath)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath))
	return err
}

func (s *DB) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (resource.Record, error) {
	var rec resource.Record
	var kind, status string
	err := sc.Scan(&rec.ID, &kind, &status, &rec.FilePath, &rec.Config, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, store.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	rec.Kind = resource.Kind(kind)
	rec.DesiredStatus = resource.Status(status)
	return rec, nil
}
