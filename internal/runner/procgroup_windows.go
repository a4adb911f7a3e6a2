//go:build windows

package runner

import (
	"os/exec"
	"time"
)

// configureProcess only sets the wait delay on Windows where Setpgid is
// unavailable; cancellation falls back to the default Process.Kill.
func configureProcess(cmd *exec.Cmd, waitDelay time.Duration) {
	cmd.WaitDelay = waitDelay
}
