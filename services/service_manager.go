package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/config"
	"hivekeeper/internal/events"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/manifest"
	"hivekeeper/internal/models"
	"hivekeeper/internal/proc"
	"hivekeeper/internal/source"
	"hivekeeper/internal/store"

	"github.com/google/uuid"
)

/**
 * Service manager options
 * @property {string} Home - Home directory
 * @property {*config.AppConfig} Config - Loaded configuration
 * @property {events.Emitter} Events - Event pipeline of the invocation
 * @property {string} Self - Executable used for {{.Self}} and daemon hosts
 * @property {string} Version - Running hivekeeper version
 */
type ManagerOptions struct {
	Home    string
	Config  *config.AppConfig
	Events  events.Emitter
	Self    string
	Version string
}

// ServiceManager carries out the commands against the store and the supervisor.
type ServiceManager struct {
	home     string
	cfg      *config.AppConfig
	out      events.Emitter
	version  string
	store    *store.Store
	sup      *proc.Supervisor
	resolver *source.Resolver
}

func NewServiceManager(opts ManagerOptions) *ServiceManager {
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &ServiceManager{
		home:    opts.Home,
		cfg:     cfg,
		out:     opts.Events,
		version: opts.Version,
		store:   store.New(opts.Home),
		sup: proc.New(proc.Options{
			Home:   opts.Home,
			Self:   opts.Self,
			Config: cfg.Supervisor,
			Events: opts.Events,
		}),
		resolver: source.NewResolver(cfg.Catalog.URL),
	}
}

func (sm *ServiceManager) Store() *store.Store {
	return sm.store
}

func (sm *ServiceManager) Supervisor() *proc.Supervisor {
	return sm.sup
}

func (sm *ServiceManager) emit(e events.Event) {
	if sm.out != nil {
		sm.out.Emit(e)
	}
}

// NormalizeName accepts a service name, a package directory or a .zip path.
func NormalizeName(ref string) string {
	name := filepath.Base(filepath.Clean(ref))
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		name = name[:len(name)-len(".zip")]
	}
	return name
}

/**
 * Install a service package
 * @param {context.Context} ctx - Cancels remote downloads
 * @param {string} ref - Directory, zip archive or catalog name
 * @returns {(*store.Installation, error)} New installation
 */
func (sm *ServiceManager) Install(ctx context.Context, ref string) (*store.Installation, error) {
	pkg, err := sm.resolver.Acquire(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()
	if err := pkg.Manifest.CheckCompatible(sm.version); err != nil {
		return nil, err
	}
	inst, err := sm.store.Install(pkg.Manifest, pkg.Files)
	if err != nil {
		return nil, err
	}
	sm.emit(events.CLI(events.LevelInfo, fmt.Sprintf("Installed %s from %s", inst.Name(), pkg.Origin)))
	return inst, nil
}

/**
 * Uninstall a service
 * @param {string} ref - Name or the path it was installed from
 * @returns {error} NotFoundError, or ConflictError while the service runs
 */
func (sm *ServiceManager) Uninstall(ref string) error {
	name := NormalizeName(ref)
	if err := sm.store.Uninstall(name, sm.sup); err != nil {
		return err
	}
	sm.emit(events.CLI(events.LevelInfo, fmt.Sprintf("Uninstalled %s", name)))
	return nil
}

func detailOf(m *manifest.Manifest, installed bool) models.ServiceDetail {
	d := models.ServiceDetail{
		Name:      m.Name,
		Label:     m.DisplayName(),
		Installed: installed,
		Port:      m.Port,
		Protocol:  m.Protocol,
		Alerts:    m.Alerts,
		Status:    models.StatusNoSuchService,
	}
	for _, p := range m.Parameters {
		d.Parameters = append(d.Parameters, models.ParameterDetail{
			Name:     p.Name,
			Type:     p.Type,
			Required: p.Required,
			Default:  p.Default,
		})
	}
	return d
}

func (sm *ServiceManager) withStatus(d models.ServiceDetail) models.ServiceDetail {
	if rec, up := sm.sup.Status(d.Name); up {
		d.Status = models.StatusRunning
		d.Process = &models.ProcessDetail{
			Service:   rec.Service,
			RunID:     rec.RunID,
			HostPid:   rec.HostPid,
			Pid:       rec.Pid,
			Port:      rec.Port,
			Mode:      rec.Mode,
			State:     models.StateRunning,
			StartTime: rec.StartTime,
		}
	}
	return d
}

// List returns the installed services.
func (sm *ServiceManager) List() ([]models.ServiceDetail, error) {
	insts, err := sm.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]models.ServiceDetail, 0, len(insts))
	for _, inst := range insts {
		d := detailOf(inst.Manifest, true)
		d.Path = inst.Path
		out = append(out, sm.withStatus(d))
	}
	return out, nil
}

// ListRemote returns the services offered by the catalog.
func (sm *ServiceManager) ListRemote(ctx context.Context) ([]models.ServiceDetail, error) {
	ms, err := sm.resolver.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ServiceDetail, 0, len(ms))
	for i := range ms {
		_, err := sm.store.Get(ms[i].Name)
		out = append(out, detailOf(&ms[i], err == nil))
	}
	return out, nil
}

/**
 * Describe one service
 * @param {context.Context} ctx - Cancels the catalog lookup
 * @param {string} ref - Service name or package path
 * @returns {(*models.ServiceDetail, error)} Installed detail, or the catalog's when not installed
 * @description
 * - NotFoundError when neither the store nor the catalog knows the name
 */
func (sm *ServiceManager) Show(ctx context.Context, ref string) (*models.ServiceDetail, error) {
	name := NormalizeName(ref)
	inst, err := sm.store.Get(name)
	if err == nil {
		d := detailOf(inst.Manifest, true)
		d.Path = inst.Path
		d = sm.withStatus(d)
		return &d, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}
	m, rerr := sm.resolver.Catalog.Get(ctx, name)
	if rerr != nil {
		logger.Debugf("catalog lookup of %s: %v", name, rerr)
		return nil, err
	}
	d := detailOf(m, false)
	return &d, nil
}

// Status reports "running" or "no such service" for one name.
func (sm *ServiceManager) Status(ref string) models.ServiceDetail {
	name := NormalizeName(ref)
	d := models.ServiceDetail{Name: name, Status: models.StatusNoSuchService}
	if inst, err := sm.store.Get(name); err == nil {
		d = detailOf(inst.Manifest, true)
		d.Path = inst.Path
	}
	return sm.withStatus(d)
}

// StatusAll reports every installed service.
func (sm *ServiceManager) StatusAll() ([]models.ServiceDetail, error) {
	return sm.List()
}

/**
 * Resolve a service and validate its parameters
 * @param {string} ref - Service name
 * @param {[]string} args - name=value tokens
 * @returns {(*store.Installation, manifest.ParameterSet, error)} Ready to start
 */
func (sm *ServiceManager) Prepare(ref string, args []string) (*store.Installation, manifest.ParameterSet, error) {
	inst, err := sm.store.Get(NormalizeName(ref))
	if err != nil {
		return nil, nil, err
	}
	params, err := manifest.Validate(inst.Manifest.Parameters, args)
	if err != nil {
		return nil, nil, err
	}
	return inst, params, nil
}

/**
 * Run a prepared service in this process until ctx ends
 * @param {context.Context} ctx - Cancellation triggers the orderly stop
 * @param {*store.Installation} inst - Service
 * @param {manifest.ParameterSet} params - Validated parameters
 * @param {models.StartMode} mode - Foreground, or daemon inside a daemon host
 * @param {string} runID - Run id, generated when empty
 */
func (sm *ServiceManager) Run(ctx context.Context, inst *store.Installation, params manifest.ParameterSet, mode models.StartMode, runID string) error {
	return sm.sup.Run(ctx, proc.StartRequest{
		Installation: inst,
		Params:       params,
		Mode:         mode,
		RunID:        runID,
	})
}

/**
 * Run a prepared service in a detached host
 * @param {context.Context} ctx - Cancels the readiness wait
 * @param {*store.Installation} inst - Service
 * @param {manifest.ParameterSet} params - Validated parameters
 * @param {[]string} hostArgs - Command line of the host, without the executable
 * @returns {(*proc.Record, error)} Runtime record of the started service
 */
func (sm *ServiceManager) Daemonize(ctx context.Context, inst *store.Installation, params manifest.ParameterSet, hostArgs []string, logPath string) (*proc.Record, error) {
	runID := uuid.NewString()
	_, err := sm.sup.Daemonize(ctx, proc.DaemonRequest{
		Service: inst.Name(),
		Port:     proc.RunningPort(inst.Manifest, params),
		Protocol: inst.Manifest.Protocol,
		RunID:    runID,
		Args:     hostArgs,
		LogPath:  logPath,
	})
	if err != nil {
		return nil, err
	}
	return proc.ReadRecord(sm.home, inst.Name())
}

// Stop stops a service wherever it was started. Not running is a no-op.
func (sm *ServiceManager) Stop(ctx context.Context, ref string) (bool, error) {
	name := NormalizeName(ref)
	stopped, err := sm.sup.Stop(ctx, name)
	if err != nil {
		return false, err
	}
	if stopped {
		sm.emit(events.CLI(events.LevelInfo, fmt.Sprintf("Stopped %s", name)))
	}
	return stopped, nil
}

/**
 * Check installed services
 * @returns {(int, int, error)} Installed and running counts
 * @description
 * - Runtime records left by dead hosts are removed
 */
func (sm *ServiceManager) CheckServices() (int, int, error) {
	insts, err := sm.store.List()
	if err != nil {
		return 0, 0, err
	}
	running := 0
	for _, inst := range insts {
		name := inst.Name()
		if up, _ := sm.sup.IsRunning(name); up {
			running++
			continue
		}
		if _, err := proc.ReadRecord(sm.home, name); err == nil {
			logger.Warnf("removing stale runtime record of '%s'", name)
			if err := proc.RemoveRecord(sm.home, name); err != nil {
				logger.Errorf("remove runtime record of '%s': %v", name, err)
			}
		}
	}
	return len(insts), running, nil
}
