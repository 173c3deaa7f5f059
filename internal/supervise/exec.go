package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hostling/hostling/internal/logger"
)

// ExecSpawner runs a bot as an OS process. FilePath is the command line to
// execute; Config is passed via the HOSTLING_CONFIG environment variable.
type ExecSpawner struct {
	Log logger.Config
}

func NewExecSpawner(log logger.Config) *ExecSpawner { return &ExecSpawner{Log: log} }

func (s *ExecSpawner) Spawn(ctx context.Context, spec Spec) (Proc, error) {
	cmd := buildCommand(spec.FilePath)
	if spec.Config != "" {
		cmd.Env = append(cmd.Environ(), "HOSTLING_CONFIG="+spec.Config)
	}
	setSysProcAttr(cmd)
	out := s.Log.Writer(spec.ID)
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}
	if err := cmd.Start(); err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, fmt.Errorf("spawn %s: %w", spec.ID, err)
	}
	p := &execProc{cmd: cmd, out: out, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

// buildCommand constructs the exec.Cmd for a command line. Shell
// metacharacters force a /bin/sh -c wrap; plain commands run directly.
func buildCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

type execProc struct {
	cmd      *exec.Cmd
	out      io.WriteCloser
	done     chan struct{}
	waitOnce sync.Once
	waitErr  error
}

func (p *execProc) wait() {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		if p.out != nil {
			_ = p.out.Close()
		}
		close(p.done)
	})
}

func (p *execProc) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProc) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	if p.cmd.Process == nil {
		return false
	}
	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

func (p *execProc) Stop(wait time.Duration) error {
	if p.cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	termErr := p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
		return nil
	case <-time.After(wait):
	}
	killErr := p.cmd.Process.Kill()
	select {
	case <-p.done:
	case <-time.After(wait):
		return errors.Join(termErr, killErr, fmt.Errorf("process %d did not exit after kill", p.PID()))
	}
	return nil
}
