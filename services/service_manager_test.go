package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/config"
	"hivekeeper/internal/events"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/models"
	"hivekeeper/internal/proc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `name: simple_http
label: Simple HTTP
version: 1.0.0
min_keeper_version: 0.1.0
port: 8888
protocol: tcp
parameters:
  - {name: port, type: int, required: true}
  - {name: threading, type: bool, default: false}
alerts: [simple_http]
entrypoint:
  command: "{{.Self}}"
  args: [decoy, simple_http]
`

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Message)
	}
	return out
}

func samplePackage(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "sample_services", "simple_http")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "service.yaml"), []byte(sampleManifest), 0644))
	return dir
}

func newManager(t *testing.T, catalogURL string) (*ServiceManager, *recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.URL = catalogURL
	rec := &recorder{}
	return NewServiceManager(ManagerOptions{
		Home:    t.TempDir(),
		Config:  &cfg,
		Events:  rec,
		Version: "0.1.0",
	}), rec
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "simple_http", NormalizeName("simple_http"))
	assert.Equal(t, "simple_http", NormalizeName("sample_services/simple_http"))
	assert.Equal(t, "simple_http", NormalizeName("sample_services/simple_http/"))
	assert.Equal(t, "simple_http", NormalizeName("/tmp/simple_http.zip"))
}

func TestInstallListUninstall(t *testing.T) {
	sm, rec := newManager(t, "")
	pkg := samplePackage(t)

	inst, err := sm.Install(context.Background(), pkg)
	require.NoError(t, err)
	assert.Equal(t, "simple_http", inst.Name())

	_, err = sm.Install(context.Background(), pkg)
	assert.True(t, apperr.IsConflict(err))

	list, err := sm.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "simple_http", list[0].Name)
	assert.Equal(t, 8888, list[0].Port)
	assert.Equal(t, "TCP", list[0].Protocol)
	assert.Equal(t, []string{"simple_http"}, list[0].Alerts)
	assert.Equal(t, models.StatusNoSuchService, list[0].Status)

	d, err := sm.Show(context.Background(), "simple_http")
	require.NoError(t, err)
	assert.True(t, d.Installed)
	assert.Equal(t, "Simple HTTP", d.Label)
	require.Len(t, d.Parameters, 2)
	assert.True(t, d.Parameters[0].Required)

	require.NoError(t, sm.Uninstall(pkg))
	_, err = sm.Show(context.Background(), "simple_http")
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(sm.Uninstall("simple_http")))
	assert.Contains(t, rec.messages(), "Uninstalled simple_http")
}

func TestInstallRejectsNewerKeeper(t *testing.T) {
	sm, _ := newManager(t, "")
	sm.version = "0.0.1"
	_, err := sm.Install(context.Background(), samplePackage(t))
	assert.True(t, apperr.IsValidation(err))
}

func TestUninstallBlockedWhileRunning(t *testing.T) {
	sm, _ := newManager(t, "")
	_, err := sm.Install(context.Background(), samplePackage(t))
	require.NoError(t, err)

	rl, err := proc.CreateRecord(sm.home, proc.Record{Service: "simple_http", HostPid: os.Getpid(), Port: 8888})
	require.NoError(t, err)
	err = sm.Uninstall("simple_http")
	assert.True(t, apperr.IsConflict(err))
	require.NoError(t, rl.Release())

	assert.NoError(t, sm.Uninstall("simple_http"))
}

func TestUninstallWithStaleRecord(t *testing.T) {
	sm, _ := newManager(t, "")
	inst, err := sm.Install(context.Background(), samplePackage(t))
	require.NoError(t, err)
	data, _ := json.Marshal(proc.Record{Service: "simple_http", HostPid: 1 << 22, Port: 8888})
	require.NoError(t, os.WriteFile(filepath.Join(inst.Path, proc.RecordFile), data, 0644))

	installed, running, err := sm.CheckServices()
	require.NoError(t, err)
	assert.Equal(t, 1, installed)
	assert.Equal(t, 0, running)
	_, err = proc.ReadRecord(sm.home, "simple_http")
	assert.ErrorIs(t, err, proc.ErrNoRecord)

	require.NoError(t, os.WriteFile(filepath.Join(inst.Path, proc.RecordFile), data, 0644))
	assert.NoError(t, sm.Uninstall("simple_http"))
}

func TestStatus(t *testing.T) {
	sm, _ := newManager(t, "")
	assert.Equal(t, models.StatusNoSuchService, sm.Status("ghost").Status)

	_, err := sm.Install(context.Background(), samplePackage(t))
	require.NoError(t, err)
	d := sm.Status("simple_http")
	assert.Equal(t, models.StatusNoSuchService, d.Status)
	assert.True(t, d.Installed)

	stopped, err := sm.Stop(context.Background(), "simple_http")
	assert.NoError(t, err)
	assert.False(t, stopped)
}

func TestPrepare(t *testing.T) {
	sm, _ := newManager(t, "")
	_, err := sm.Install(context.Background(), samplePackage(t))
	require.NoError(t, err)

	_, _, err = sm.Prepare("simple_http", nil)
	require.Error(t, err)
	assert.Equal(t, "'port' is missing", err.Error())

	_, _, err = sm.Prepare("simple_http", []string{"port=notint"})
	require.Error(t, err)
	assert.Equal(t, "Bad value for port=notint (must be integer)", err.Error())

	inst, params, err := sm.Prepare("simple_http", []string{"port=9999", "threading=yes"})
	require.NoError(t, err)
	assert.Equal(t, "simple_http", inst.Name())
	port, _ := params.Int("port")
	assert.Equal(t, 9999, port)

	_, _, err = sm.Prepare("ghost", nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRemoteCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"services":[
			{"name":"telnet","port":23,"protocol":"TCP","alerts":["telnet"]},
			{"name":"simple_http","port":8888,"protocol":"TCP","alerts":["simple_http"]}]}`))
	}))
	defer srv.Close()

	sm, _ := newManager(t, srv.URL)
	_, err := sm.Install(context.Background(), samplePackage(t))
	require.NoError(t, err)

	remote, err := sm.ListRemote(context.Background())
	require.NoError(t, err)
	require.Len(t, remote, 2)
	assert.Equal(t, "simple_http", remote[0].Name)
	assert.True(t, remote[0].Installed)
	assert.Equal(t, "telnet", remote[1].Name)
	assert.False(t, remote[1].Installed)

	d, err := sm.Show(context.Background(), "telnet")
	require.NoError(t, err)
	assert.False(t, d.Installed)
	assert.Equal(t, 23, d.Port)

	_, err = sm.Show(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
}
