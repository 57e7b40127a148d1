//go:build unix

package oracle

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcessGroup starts the command in its own process group so that a
// timeout kills the command and everything it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
}
