package probe

import (
	"context"
	"testing"
	"time"

	"github.com/hostling/hostling/internal/registry"
)

type stubProc struct {
	alive bool
}

func (s stubProc) PID() int {
	return 1234
}

func (s stubProc) Alive() bool {
	return s.alive
}

func (s stubProc) Stop(time.Duration) error {
	return nil
}

func TestProcChecker(t *testing.T) {
	c := ProcChecker{}
	ctx := context.Background()

	healthy, err := c.Healthy(ctx, &registry.Handle{ID: "b1", Proc: stubProc{alive: true}})
	if err != nil || !healthy {
		t.Fatalf("alive proc: healthy=%v err=%v", healthy, err)
	}
	healthy, err = c.Healthy(ctx, &registry.Handle{ID: "b1", Proc: stubProc{alive: false}})
	if err != nil || healthy {
		t.Fatalf("dead proc: healthy=%v err=%v", healthy, err)
	}
	healthy, err = c.Healthy(ctx, &registry.Handle{ID: "b1"})
	if err != nil || healthy {
		t.Fatalf("nil proc: healthy=%v err=%v", healthy, err)
	}
	if c.Describe() != "proc" {
		t.Fatalf("describe = %q", c.Describe())
	}
}

func TestCommandCheckerrequiresCommand(t *testing.T) {
	c := CommandChecker{}
	if _, err := c.Healthy(context.Background(), &registry.Handle{ID: "b1"}); err == nil {
		t.Fatalf("expected error for empty command")
	}
}
