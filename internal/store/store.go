package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hostling/hostling/internal/resource"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("record not found")
	// ErrSnapshotUnsupported is returned by stores that cannot produce a
	// local snapshot file (e.g. a remote PostgreSQL).
	ErrSnapshotUnsupported = errors.New("store does not support snapshots")
)

// Session is a dashboard login session row. Authentication itself lives in
// the external API layer; the engine only sweeps expired rows.
type Session struct {
	Token     string
	User      string
	ExpiresAt time.Time
}

// NewSession mints a session for user with a fresh random token, valid for
// ttl from now.
func NewSession(user string, ttl time.Duration) Session {
	return Session{
		Token:     uuid.NewString(),
		User:      user,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
}

// Store is the durable lifecycle record store. The engine reads records and
// writes desired status; Put/Delete exist for the CRUD layer and tests.
type Store interface {
	EnsureSchema(ctx context.Context) error

	Put(ctx context.Context, rec resource.Record) error
	Get(ctx context.Context, id string) (resource.Record, error)
	List(ctx context.Context) ([]resource.Record, error)
	ListByDesiredStatus(ctx context.Context, status resource.Status) ([]resource.Record, error)
	SetStatus(ctx context.Context, id string, status resource.Status) error
	Delete(ctx context.Context, id string) error

	PutSession(ctx context.Context, s Session) error
	CleanupExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Snapshot writes a consistent copy of the store to destPath.
	Snapshot(ctx context.Context, destPath string) error

	Close() error
}
