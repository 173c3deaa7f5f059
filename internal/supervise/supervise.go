// Package supervise abstracts how a resource is actually brought up and
// torn down. The reconciliation engine only talks to Spawner/Proc, so real
// container or VM supervision can be substituted without touching it.
package supervise

import (
	"context"
	"time"

	"github.com/hostling/hostling/internal/resource"
)

// Proc is a live supervised resource instance.
type Proc interface {
	// PID returns the OS process id, or 0 when the resource has no process.
	PID() int
	// Alive reports whether the instance is still up.
	Alive() bool
	// Stop terminates the instance, escalating after wait elapses.
	Stop(wait time.Duration) error
}

// Spec carries what a Spawner needs to bring one resource up.
type Spec struct {
	ID       string
	Kind     resource.Kind
	FilePath string
	Config   string
}

// Spawner brings a resource instance up.
type Spawner interface {
	Spawn(ctx context.Context, spec Spec) (Proc, error)
}

// Spawners maps each resource kind to its Spawner.
type Spawners map[resource.Kind]Spawner
