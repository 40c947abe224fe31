package proc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"hivekeeper/internal/metrics"
	"hivekeeper/internal/models"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// allowed lists the legal successors of each state.
var allowed = map[models.RunState][]models.RunState{
	models.StateUnstarted: {models.StateStarting},
	models.StateStarting:  {models.StateReady, models.StateStopping, models.StateFailed},
	models.StateReady:     {models.StateRunning, models.StateStopping},
	models.StateRunning:   {models.StateStopping, models.StateFailed},
	models.StateStopping:  {models.StateStopped},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to models.RunState) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

/**
 * Handle 一个被监管的诱饵服务实例
 * @property {string} Service - 服务名
 * @property {string} RunID - 本次运行的唯一标识
 * @property {int} Port - 服务监听端口
 * @property {string} Protocol - TCP 或 UDP
 * @property {models.StartMode} Mode - 前台或守护进程方式
 * @description
 * - 状态只能沿 allowed 表迁移，非法迁移返回 ErrInvalidTransition
 * - Ready() 在观察到就绪事件后关闭，Done() 在进程退出后关闭
 */
type Handle struct {
	Service   string
	RunID     string
	Port      int
	Protocol  string
	Mode      models.StartMode
	StartTime time.Time

	mu    sync.Mutex
	state models.RunState
	pid   int

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	exitErr   error

	record *RecordLock
}

func newHandle(service, runID string, port int, mode models.StartMode) *Handle {
	return &Handle{
		Service: service,
		RunID:   runID,
		Port:    port,
		Mode:    mode,
		state:   models.StateUnstarted,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (h *Handle) State() models.RunState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) Pid() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

func (h *Handle) setPid(pid int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pid = pid
}

// Transition moves the handle to a new state.
func (h *Handle) Transition(to models.RunState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !CanTransition(h.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, h.state, to)
	}
	h.state = to
	metrics.StateTransitions.WithLabelValues(h.Service, string(to)).Inc()
	if to == models.StateReady {
		h.readyOnce.Do(func() { close(h.ready) })
	}
	return nil
}

// Ready is closed once the decoy has announced readiness.
func (h *Handle) Ready() <-chan struct{} {
	return h.ready
}

// Done is closed once the decoy process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr is the decoy's exit status, valid after Done is closed.
func (h *Handle) ExitErr() error {
	<-h.done
	return h.exitErr
}

func (h *Handle) Detail() models.ProcessDetail {
	h.mu.Lock()
	defer h.mu.Unlock()
	hostPid := 0
	if h.record != nil {
		hostPid = h.record.rec.HostPid
	}
	return models.ProcessDetail{
		Service:   h.Service,
		RunID:     h.RunID,
		HostPid:   hostPid,
		Pid:       h.pid,
		Port:      h.Port,
		Mode:      h.Mode,
		State:     h.state,
		StartTime: h.StartTime,
	}
}
