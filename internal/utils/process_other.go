//go:build unix && !linux

package utils

import "os/exec"

// SetParentDeathSignal is a no-op where the kernel has no parent death signal.
func SetParentDeathSignal(cmd *exec.Cmd) {}
