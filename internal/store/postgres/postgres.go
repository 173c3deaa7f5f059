package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
)

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS resources(
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			desired_status TEXT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			config TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resources_desired_status ON resources(desired_status);`,
		`CREATE TABLE IF NOT EXISTS sessions(
			token TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Put(ctx context.Context, rec resource.Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO resources(id, kind, desired_status, file_path, config, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT(id) DO UPDATE SET
			kind=EXCLUDED.kind,
			desired_status=EXCLUDED.desired_status,
			file_path=EXCLUDED.file_path,
			config=EXCLUDED.config,
			updated_at=EXCLUDED.updated_at`,
		rec.ID, string(rec.Kind), string(rec.DesiredStatus), rec.FilePath, rec.Config, rec.CreatedAt, now)
	return err
}

func (p *DB) Get(ctx context.Context, id string) (resource.Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, kind, desired_status, file_path, config, created_at, updated_at
		FROM resources WHERE id = $1`, id)
	return scanRecord(row)
}

func (p *DB) List(ctx context.Context) ([]resource.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, kind, desired_status, file_path, config, created_at, updated_at
		FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (p *DB) ListByDesiredStatus(ctx context.Context, status resource.Status) ([]resource.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, kind, desired_status, file_path, config, created_at, updated_at
		FROM resources WHERE desired_status = $1 ORDER BY id`, string(status))
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

func (p *DB) SetStatus(ctx context.Context, id string, status resource.Status) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE resources SET desired_status = $1, updated_at = $2 WHERE id = $3`,
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

func (p *DB) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	return err
}

func (p *DB) PutSession(ctx context.Context, sess store.Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions(token, username, expires_at) VALUES($1,$2,$3)
		ON CONFLICT(token) DO UPDATE SET username=EXCLUDED.username, expires_at=EXCLUDED.expires_at`,
		sess.Token, sess.User, sess.ExpiresAt.UTC())
	return err
}

func (p *DB) CleanupExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Snapshot is unsupported for PostgreSQL; backups are an operator concern
// (pg_dump or managed snapshots) that the backup task skips with a log line.
func (p *DB) Snapshot(context.Context, string) error {
	return store.ErrSnapshotUnsupported
}

func (p *DB) Close() error { return p.db.Close() }

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
