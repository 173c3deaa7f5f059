//go:build windows

package supervise

import "os/exec"

func setSysProcAttr(_ *exec.Cmd) {}
