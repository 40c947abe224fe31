package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/config"
	"hivekeeper/internal/env"
	"hivekeeper/internal/events"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/manifest"
	"hivekeeper/internal/models"
	"hivekeeper/internal/store"
	"hivekeeper/internal/utils"

	"github.com/google/uuid"
)

/**
 * Supervisor options
 * @property {string} Home - Home directory holding service directories
 * @property {string} Self - Executable substituted for {{.Self}}, defaults to os.Executable
 * @property {config.SupervisorConfig} Config - Timing bounds
 * @property {events.Emitter} Events - Pipeline of the current invocation
 */
type Options struct {
	Home   string
	Self   string
	Config config.SupervisorConfig
	Events events.Emitter
}

// Supervisor starts, stops and inspects decoy processes.
type Supervisor struct {
	home string
	self string
	cfg  config.SupervisorConfig
	out  events.Emitter
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.Event) {}

func New(opts Options) *Supervisor {
	s := &Supervisor{home: opts.Home, self: opts.Self, cfg: opts.Config, out: opts.Events}
	if s.self == "" {
		if exe, err := os.Executable(); err == nil {
			s.self = exe
		}
	}
	if s.out == nil {
		s.out = nopEmitter{}
	}
	return s
}

/**
 * StartRequest describes one run of an installed service
 * @property {*store.Installation} Installation - Service to run
 * @property {manifest.ParameterSet} Params - Validated parameters
 * @property {models.StartMode} Mode - Recorded in the runtime record
 * @property {string} RunID - Generated when empty
 */
type StartRequest struct {
	Installation *store.Installation
	Params       manifest.ParameterSet
	Mode         models.StartMode
	RunID        string
}

// RunningPort is the "port" parameter when given, otherwise the advertised port.
func RunningPort(m *manifest.Manifest, params manifest.ParameterSet) int {
	if p, ok := params.Int("port"); ok && p > 0 {
		return p
	}
	return m.Port
}

func readyMessage(service string, port int) string {
	return fmt.Sprintf("Starting %s service on port: %d", service, port)
}

// commandData is what entrypoint templates can reference.
type commandData struct {
	Self   string
	Dir    string
	Name   string
	Port   int
	RunID  string
	Params map[string]interface{}
}

func (s *Supervisor) command(inst *store.Installation, params manifest.ParameterSet, runID string, port int) (*exec.Cmd, error) {
	m := inst.Manifest
	data := commandData{
		Self:   s.self,
		Dir:    inst.Path,
		Name:   m.Name,
		Port:   port,
		RunID:  runID,
		Params: params,
	}
	name, args, err := utils.GetCommandLine(m.Entrypoint.Command, m.Entrypoint.Args, data)
	if err != nil {
		return nil, fmt.Errorf("entrypoint of '%s': %w", m.Name, err)
	}
	if strings.ContainsRune(name, filepath.Separator) && !filepath.IsAbs(name) {
		name = filepath.Join(inst.Path, name)
	}
	paramEnv, err := params.Env()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = inst.Path
	cmd.Env = append(os.Environ(), paramEnv...)
	cmd.Env = append(cmd.Env,
		env.HomeEnv+"="+s.home,
		env.ServiceEnv+"="+m.Name,
		env.PortEnv+"="+strconv.Itoa(port),
		env.RunIDEnv+"="+runID,
	)
	for k, v := range m.Entrypoint.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	utils.SetNewPG(cmd)
	utils.SetParentDeathSignal(cmd)
	return cmd, nil
}

func (s *Supervisor) emitFailed(h *Handle, err error) {
	s.out.Emit(events.Lifecycle(h.Service, string(models.StateFailed), err.Error()).
		WithRun(h.RunID, h.Pid()).
		WithExtra("port", h.Port))
}

/**
 * Start a service and wait for its readiness announcement
 * @param {context.Context} ctx - Cancelling it before readiness stops the child
 * @param {StartRequest} req - What to start
 * @returns {(*Handle, error)} Running handle
 * @description
 * - Rejects a service that already runs and a port that is already bound
 *   before anything is spawned (ConflictError)
 * - Holds the runtime record for the whole life of the handle
 * - The child's stdout and stderr are relayed into the event pipeline
 * - No readiness within the configured bound: the child is stopped, the
 *   handle goes to Failed and a TimeoutError is returned
 */
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (*Handle, error) {
	inst := req.Installation
	m := inst.Manifest
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeForeground
	}
	port := RunningPort(m, req.Params)
	h := newHandle(m.Name, runID, port, mode)
	h.Protocol = m.Protocol

	fail := func(err error) (*Handle, error) {
		s.emitFailed(h, err)
		if h.record != nil {
			h.record.Release()
		}
		return nil, err
	}

	if running, _ := s.IsRunning(m.Name); running {
		return fail(apperr.NewConflict("service '%s' is already running", m.Name))
	}
	if !utils.CheckPortAvailable(m.Protocol, port) {
		return fail(apperr.NewConflict("port %d/%s is already in use", port, strings.ToLower(m.Protocol)))
	}
	h.StartTime = time.Now()
	rl, err := CreateRecord(s.home, Record{
		Service:   m.Name,
		RunID:     runID,
		HostPid:   os.Getpid(),
		Port:      port,
		Protocol:  m.Protocol,
		Mode:      mode,
		StartTime: h.StartTime,
	})
	if errors.Is(err, ErrRecordExists) {
		return fail(&apperr.ConflictError{Message: fmt.Sprintf("service '%s' is already running", m.Name), Cause: err})
	}
	if err != nil {
		return fail(err)
	}
	h.record = rl
	h.Transition(models.StateStarting)

	cmd, err := s.command(inst, req.Params, runID, port)
	if err != nil {
		h.Transition(models.StateFailed)
		return fail(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.Transition(models.StateFailed)
		return fail(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		h.Transition(models.StateFailed)
		return fail(err)
	}
	logger.Infof("executing command: %s %s", cmd.Path, strings.Join(cmd.Args[1:], " "))
	if err := cmd.Start(); err != nil {
		h.Transition(models.StateFailed)
		return fail(fmt.Errorf("start '%s': %w", m.Name, err))
	}
	pid := cmd.Process.Pid
	h.setPid(pid)
	rec := rl.Record()
	rec.Pid = pid
	if err := rl.Update(rec); err != nil {
		logger.Warnf("update runtime record of %s: %v", m.Name, err)
	}
	s.out.Emit(events.Lifecycle(m.Name, string(models.StateStarting),
		fmt.Sprintf("Launching %s (pid %d)", m.Name, pid)).WithRun(runID, pid).WithExtra("port", port))

	readyCh := make(chan events.Event, 1)
	relay := events.Relay{Service: m.Name, RunID: runID, Pid: pid, Out: s.out, OnReady: func(e events.Event) {
		select {
		case readyCh <- e:
		default:
		}
	}}
	var wg sync.WaitGroup
	wg.Add(2)
	for _, r := range []io.Reader{stdout, stderr} {
		go func(r io.Reader) {
			defer wg.Done()
			if err := relay.Run(r); err != nil {
				logger.Warnf("%v", err)
			}
		}(r)
	}
	go func() {
		wg.Wait()
		h.exitErr = cmd.Wait()
		close(h.done)
	}()

	timer := time.NewTimer(s.cfg.ReadyTimeout)
	defer timer.Stop()
	select {
	case e := <-readyCh:
		msg := e.Message
		if msg == "" {
			msg = readyMessage(m.Name, port)
		}
		h.Transition(models.StateReady)
		s.out.Emit(events.Lifecycle(m.Name, string(models.StateReady), msg).
			WithRun(runID, pid).
			WithExtra("port", port).
			WithExtra("mode", string(mode)))
		h.Transition(models.StateRunning)
		logger.Infof("service '%s' is running (pid %d, port %d)", m.Name, pid, port)
		return h, nil
	case <-h.done:
		h.Transition(models.StateFailed)
		return fail(fmt.Errorf("service '%s' exited before becoming ready: %v", m.Name, h.exitErr))
	case <-timer.C:
		s.terminateChild(h)
		h.Transition(models.StateFailed)
		return fail(&apperr.TimeoutError{
			Operation: fmt.Sprintf("starting '%s'", m.Name),
			Timeout:   s.cfg.ReadyTimeout.String(),
		})
	case <-ctx.Done():
		if err := s.StopHandle(context.Background(), h); err != nil {
			return nil, err
		}
		return nil, ctx.Err()
	}
}

/**
 * Run a service until ctx is cancelled or the decoy exits
 * @returns {error} nil after an orderly stop, an error when the decoy failed
 */
func (s *Supervisor) Run(ctx context.Context, req StartRequest) error {
	h, err := s.Start(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	select {
	case <-ctx.Done():
		logger.Infof("stopping service '%s' on request", h.Service)
		return s.StopHandle(context.Background(), h)
	case <-h.Done():
		h.Transition(models.StateFailed)
		err := fmt.Errorf("service '%s' exited unexpectedly: %v", h.Service, h.exitErr)
		s.emitFailed(h, err)
		h.record.Release()
		return err
	}
}

// terminateChild sends SIGTERM, then SIGKILL to the process group once the bound passes.
func (s *Supervisor) terminateChild(h *Handle) (bool, error) {
	select {
	case <-h.done:
		return false, nil
	default:
	}
	pid := h.Pid()
	if err := utils.SignalProcess(pid, syscall.SIGTERM); err != nil {
		logger.Warnf("%v", err)
	}
	select {
	case <-h.done:
		return false, nil
	case <-time.After(s.cfg.StopTimeout):
	}
	logger.Warnf("service '%s' (pid %d) ignored SIGTERM for %v, killing", h.Service, pid, s.cfg.StopTimeout)
	if err := utils.SignalProcess(-pid, syscall.SIGKILL); err != nil {
		utils.SignalProcess(pid, syscall.SIGKILL)
	}
	select {
	case <-h.done:
		return true, nil
	case <-time.After(s.cfg.KillTimeout):
		return true, fmt.Errorf("service '%s' (pid %d): %w", h.Service, pid, utils.ErrStillRunning)
	}
}

/**
 * Orderly stop of a handle owned by this process
 * @description
 * - Graceful signal, bounded wait, forced kill
 * - Stopped only once the process exited and the port refuses connections
 */
func (s *Supervisor) StopHandle(ctx context.Context, h *Handle) error {
	if err := h.Transition(models.StateStopping); err != nil {
		if h.State() == models.StateStopped {
			return nil
		}
		return err
	}
	forced, err := s.terminateChild(h)
	if err != nil {
		return err
	}
	if err := utils.WaitPortReleased(ctx, h.Protocol, h.Port, s.cfg.PortReleaseTimeout); err != nil {
		return &apperr.TimeoutError{
			Operation: fmt.Sprintf("releasing port %d of '%s'", h.Port, h.Service),
			Timeout:   s.cfg.PortReleaseTimeout.String(),
			Cause:     err,
		}
	}
	h.Transition(models.StateStopped)
	if err := h.record.Release(); err != nil {
		logger.Warnf("%v", err)
	}
	s.out.Emit(events.Lifecycle(h.Service, string(models.StateStopped), fmt.Sprintf("%s service stopped", h.Service)).
		WithRun(h.RunID, h.Pid()).
		WithExtra("port", h.Port).
		WithExtra("forced", forced))
	return nil
}

/**
 * Check whether a service runs
 * @param {string} name - Service name
 * @returns {(bool, error)} True while a live process holds the runtime record
 * @description
 * - A record left behind by a dead process is stale and doesn't count
 */
func (s *Supervisor) IsRunning(name string) (bool, error) {
	rec, err := ReadRecord(s.home, name)
	if errors.Is(err, ErrNoRecord) {
		return false, nil
	}
	if err != nil {
		// 记录损坏时以锁为准
		return RecordAlive(s.home, name), nil
	}
	return RecordAlive(s.home, name) && utils.IsProcessRunning(rec.HostPid), nil
}

/**
 * Status of a service
 * @param {string} name - Service name
 * @returns {(*Record, bool)} Record and true when the host is alive and the port is served
 */
func (s *Supervisor) Status(name string) (*Record, bool) {
	rec, err := ReadRecord(s.home, name)
	if err != nil {
		return nil, false
	}
	if !RecordAlive(s.home, name) || !utils.IsProcessRunning(rec.HostPid) {
		return rec, false
	}
	return rec, utils.CheckPortServed(rec.Protocol, rec.Port)
}

/**
 * Stop a service started by any invocation
 * @param {context.Context} ctx - Cancels the waits
 * @param {string} name - Service name
 * @returns {(bool, error)} Whether a live service was stopped
 * @description
 * - No record is a successful no-op; a stale record is cleaned up
 * - The host gets SIGTERM and performs the orderly stop itself; if it
 *   doesn't exit in time it is killed and the decoy with it
 * - Returns only after the port refuses connections
 */
func (s *Supervisor) Stop(ctx context.Context, name string) (bool, error) {
	rec, err := ReadRecord(s.home, name)
	if errors.Is(err, ErrNoRecord) {
		logger.Infof("service '%s' is not running", name)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !RecordAlive(s.home, name) {
		logger.Warnf("removing stale runtime record of '%s' (host pid %d)", name, rec.HostPid)
		if rec.Pid > 0 && utils.IsProcessRunning(rec.Pid) {
			utils.TerminateProcess(ctx, rec.Pid, s.cfg.StopTimeout, s.cfg.KillTimeout)
		}
		return false, RemoveRecord(s.home, name)
	}

	hostBound := s.cfg.StopTimeout + s.cfg.KillTimeout + s.cfg.PortReleaseTimeout + time.Second
	forced, err := utils.TerminateProcess(ctx, rec.HostPid, hostBound, s.cfg.KillTimeout)
	if err != nil {
		return false, fmt.Errorf("stop '%s': %w", name, err)
	}
	if forced && rec.Pid > 0 {
		if _, err := utils.TerminateProcess(ctx, rec.Pid, 0, s.cfg.KillTimeout); err != nil {
			return false, fmt.Errorf("stop '%s': %w", name, err)
		}
	}
	if err := utils.WaitPortReleased(ctx, rec.Protocol, rec.Port, s.cfg.PortReleaseTimeout); err != nil {
		return false, &apperr.TimeoutError{
			Operation: fmt.Sprintf("releasing port %d of '%s'", rec.Port, name),
			Timeout:   s.cfg.PortReleaseTimeout.String(),
			Cause:     err,
		}
	}
	if forced {
		RemoveRecord(s.home, name)
		s.out.Emit(events.Lifecycle(name, string(models.StateStopped), fmt.Sprintf("%s service stopped", name)).
			WithRun(rec.RunID, rec.Pid).
			WithExtra("port", rec.Port).
			WithExtra("forced", true))
	}
	return true, nil
}

/**
 * DaemonRequest describes a detached run
 * @property {string} Service - Service name
 * @property {int} Port - Port the service will bind
 * @property {string} RunID - Run id passed to the host
 * @property {[]string} Args - Host command line, without the executable
 * @property {string} LogPath - Debug log the host writes to
 */
type DaemonRequest struct {
	Service  string
	Port     int
	Protocol string
	RunID    string
	Args     []string
	LogPath  string
}

/**
 * Start a detached host process and wait until it reports readiness
 * @returns {(int, error)} Host pid
 * @description
 * - The host is this executable running the service in the foreground,
 *   in its own session and with its output discarded
 * - Readiness is read back from the debug log, matched by run id
 * - On timeout the host is stopped and a TimeoutError returned
 */
func (s *Supervisor) Daemonize(ctx context.Context, req DaemonRequest) (int, error) {
	if running, _ := s.IsRunning(req.Service); running {
		return 0, apperr.NewConflict("service '%s' is already running", req.Service)
	}
	if !utils.CheckPortAvailable(req.Protocol, req.Port) {
		return 0, apperr.NewConflict("port %d/%s is already in use", req.Port, strings.ToLower(req.Protocol))
	}

	offset := LogSize(req.LogPath)
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer devnull.Close()

	cmd := exec.Command(s.self, req.Args...)
	cmd.Dir = s.home
	cmd.Env = append(os.Environ(), env.RunIDEnv+"="+req.RunID, env.HomeEnv+"="+s.home)
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	utils.SetDetached(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn daemon host: %w", err)
	}
	pid := cmd.Process.Pid
	go cmd.Wait()
	logger.Infof("daemon host for '%s' spawned (pid %d, run %s)", req.Service, pid, req.RunID)

	w := &ReadyWatcher{
		LogPath: req.LogPath,
		Offset:  offset,
		Service: req.Service,
		RunID:   req.RunID,
		HostPid: pid,
	}
	if err := w.Wait(ctx, s.cfg.ReadyTimeout); err != nil {
		if utils.IsProcessRunning(pid) {
			utils.TerminateProcess(context.Background(), pid, s.cfg.StopTimeout+s.cfg.KillTimeout, s.cfg.KillTimeout)
		}
		if apperr.IsTimeout(err) {
			s.out.Emit(events.Lifecycle(req.Service, string(models.StateFailed), err.Error()).
				WithRun(req.RunID, 0).
				WithExtra("port", req.Port))
		}
		return 0, err
	}
	return pid, nil
}
