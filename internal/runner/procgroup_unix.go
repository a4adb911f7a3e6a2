//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcess starts the child in its own process group so a cancelled
// invocation takes down every grandchild the CLI spawned (shell tools, MCP
// servers), not only the direct child. waitDelay bounds how long Wait keeps
// the pipes open after the kill.
func configureProcess(cmd *exec.Cmd, waitDelay time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if err == syscall.ESRCH {
			return nil
		}
		return err
	}
	cmd.WaitDelay = waitDelay
}
