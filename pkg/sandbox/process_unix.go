//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// setProcessGroup places the child in its own process group so the whole
// tree can be terminated on deadline expiry.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup forcibly terminates the child and everything it spawned.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
