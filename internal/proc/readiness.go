package proc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/events"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/models"
	"hivekeeper/internal/utils"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

var (
	errObservedReady = errors.New("ready")
	ErrHostExited    = errors.New("service host exited before becoming ready")
)

/**
 * ReadyWatcher waits for a daemon host to announce readiness in the debug log
 * @property {string} LogPath - Debug log written by the host
 * @property {int64} Offset - Log size before the host was spawned
 * @property {string} Service - Service name
 * @property {string} RunID - Run to wait for
 * @property {int} HostPid - Host process, watched for early exit
 */
type ReadyWatcher struct {
	LogPath string
	Offset  int64
	Service string
	RunID   string
	HostPid int

	partial []byte
}

// logLine is the subset of a debug log line the watcher needs.
type logLine struct {
	Kind    events.Kind            `json:"kind"`
	Service string                 `json:"service"`
	RunID   string                 `json:"run_id"`
	Message string                 `json:"message"`
	Extras  map[string]interface{} `json:"extras"`
}

/**
 * Wait for readiness
 * @param {context.Context} ctx - Cancels the wait
 * @param {time.Duration} timeout - Upper bound
 * @returns {error} nil once ready, TimeoutError, ErrHostExited or the failure the host logged
 * @description
 * - fsnotify wakes the scan on every write, a ticker covers missed events
 * - A second goroutine watches the host pid; errgroup stops both on the first result
 */
func (w *ReadyWatcher) Wait(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.tail(gctx)
	})
	if w.HostPid > 0 {
		g.Go(func() error {
			return w.watchHost(gctx)
		})
	}
	err := g.Wait()
	switch {
	case errors.Is(err, errObservedReady):
		return nil
	case errors.Is(err, ErrHostExited):
		// 进程退出前可能刚写完就绪或失败记录
		if res := w.scan(); res != nil {
			if errors.Is(res, errObservedReady) {
				return nil
			}
			return res
		}
		return err
	case err == nil || errors.Is(err, context.DeadlineExceeded):
		return &apperr.TimeoutError{Operation: fmt.Sprintf("starting '%s'", w.Service), Timeout: timeout.String()}
	default:
		return err
	}
}

func (w *ReadyWatcher) watchHost(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !utils.IsProcessRunning(w.HostPid) {
				return ErrHostExited
			}
		}
	}
}

func (w *ReadyWatcher) tail(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create log watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(w.LogPath)); err != nil {
		return fmt.Errorf("watch %s: %w", w.LogPath, err)
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if res := w.scan(); res != nil {
			return res
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("log watcher closed")
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.LogPath) {
				continue
			}
		case werr, ok := <-watcher.Errors:
			if ok {
				logger.Debugf("log watcher: %v", werr)
			}
		case <-ticker.C:
		}
	}
}

// scan reads new complete lines. It returns errObservedReady, the host's
// failure, or nil when nothing conclusive was found.
func (w *ReadyWatcher) scan() error {
	f, err := os.Open(w.LogPath)
	if err != nil {
		return nil
	}
	defer f.Close()
	if _, err := f.Seek(w.Offset, io.SeekStart); err != nil {
		return nil
	}
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		return nil
	}
	w.Offset += int64(len(data))
	buf := append(w.partial, data...)
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := buf[:idx]
		buf = buf[idx+1:]
		if res := w.match(line); res != nil {
			w.partial = append([]byte(nil), buf...)
			return res
		}
	}
	w.partial = append([]byte(nil), buf...)
	return nil
}

func (w *ReadyWatcher) match(line []byte) error {
	var l logLine
	if json.Unmarshal(line, &l) != nil {
		return nil
	}
	if l.Kind != events.KindLifecycle || l.RunID != w.RunID || l.Service != w.Service {
		return nil
	}
	state, _ := l.Extras["state"].(string)
	switch models.RunState(state) {
	case models.StateReady:
		return errObservedReady
	case models.StateFailed, models.StateStopped:
		return fmt.Errorf("service '%s' did not start: %s", w.Service, l.Message)
	}
	return nil
}

// LogSize returns the current size of the log, 0 if it doesn't exist.
func LogSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
