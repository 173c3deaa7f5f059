//go:build !windows

package supervise

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr places the child in its own process group so signals to
// the daemon do not propagate to managed resources.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
