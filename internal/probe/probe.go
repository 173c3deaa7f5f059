// Package probe defines the injectable health predicate used by the health
// monitor. The default checker asks the supervised instance itself; command
// checkers shell out, mirroring how external liveness scripts plug in.
package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/hostling/hostling/internal/registry"
)

// Checker decides whether a live handle is healthy. Implementations must be
// safe for concurrent use.
type Checker interface {
	Healthy(ctx context.Context, h *registry.Handle) (bool, error)
	Describe() string
}

// ProcChecker reports health straight from the supervised instance.
type ProcChecker struct{}

func (ProcChecker) Healthy(_ context.Context, h *registry.Handle) (bool, error) {
	if h.Proc == nil {
		return false, nil
	}
	return h.Proc.Alive(), nil
}

func (ProcChecker) Describe() string { return "proc" }

// CommandChecker runs a command per handle; exit status zero means healthy.
// The handle's id and pid are exposed via HOSTLING_ID / HOSTLING_PID.
type CommandChecker struct {
	Command string
}

func (c CommandChecker) Healthy(ctx context.Context, h *registry.Handle) (bool, error) {
	if c.Command == "" {
		return false, fmt.Errorf("command checker: empty command")
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", c.Command)
	cmd.Env = append(cmd.Environ(),
		"HOSTLING_ID="+h.ID,
		"HOSTLING_PID="+strconv.Itoa(h.PID),
	)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c CommandChecker) Describe() string { return "command: " + c.Command }
