package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ErrStillRunning is returned when a process survives the forced kill.
var ErrStillRunning = errors.New("process still running after kill")

/**
 * Wait until a process exits
 * @param {context.Context} ctx - Cancels the wait
 * @param {int} pid - Process to watch
 * @param {time.Duration} timeout - Upper bound of the wait
 * @returns {bool} True if the process is gone
 */
func WaitProcessExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !IsProcessRunning(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !IsProcessRunning(pid)
		case <-deadline.C:
			return !IsProcessRunning(pid)
		case <-ticker.C:
		}
	}
}

/**
 * Stop a process gracefully, escalating to SIGKILL
 * @param {context.Context} ctx - Cancels the waits
 * @param {int} pid - Process to stop
 * @param {time.Duration} graceful - Wait after SIGTERM
 * @param {time.Duration} kill - Wait after SIGKILL
 * @returns {(bool, error)} Whether SIGKILL was needed, and ErrStillRunning if the process survived
 * @description
 * - First tries SIGTERM so the process can shut down cleanly
 * - If it is still alive after the graceful bound, sends SIGKILL
 * - A process that is already gone is a success
 */
func TerminateProcess(ctx context.Context, pid int, graceful, kill time.Duration) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid pid %d", pid)
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return false, nil
		}
		return false, fmt.Errorf("send SIGTERM to %d: %w", pid, err)
	}
	if WaitProcessExit(ctx, pid, graceful) {
		return false, nil
	}

	// 优雅退出超时，强制终止
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return true, fmt.Errorf("send SIGKILL to %d: %w", pid, err)
	}
	if WaitProcessExit(ctx, pid, kill) {
		return true, nil
	}
	return true, ErrStillRunning
}
