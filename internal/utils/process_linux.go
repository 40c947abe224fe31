//go:build linux

package utils

import (
	"os/exec"
	"syscall"
)

// SetParentDeathSignal kills the child when its supervising parent dies.
func SetParentDeathSignal(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}
