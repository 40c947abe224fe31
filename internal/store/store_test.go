package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `name: simple_http
port: 8888
protocol: TCP
alerts: [simple_http]
entrypoint:
  command: "{{.Self}}"
`

type fakeChecker struct {
	running bool
	err     error
}

func (f fakeChecker) IsRunning(string) (bool, error) {
	return f.running, f.err
}

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func samplePackage(t *testing.T) (*manifest.Manifest, fstest.MapFS) {
	t.Helper()
	files := fstest.MapFS{
		"service.yaml":      {Data: []byte(manifestYAML)},
		"static/index.html": {Data: []byte("<h1>Welcome to nginx!</h1>")},
		".git/config":       {Data: []byte("[core]")},
		"cache/x.pyc":       {Data: []byte{0}},
		"hivekeeper.pid":    {Data: []byte("{}")},
	}
	m, _, err := manifest.Load(files)
	require.NoError(t, err)
	return m, files
}

func TestInstallGetList(t *testing.T) {
	s := New(t.TempDir())
	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	m, files := samplePackage(t)
	inst, err := s.Install(m, files)
	require.NoError(t, err)
	assert.Equal(t, "simple_http", inst.Name())
	assert.Equal(t, filepath.Join(s.Home, "simple_http"), inst.Path)
	assert.FileExists(t, filepath.Join(inst.Path, "static", "index.html"))
	assert.NoFileExists(t, filepath.Join(inst.Path, ".git", "config"))
	assert.NoFileExists(t, filepath.Join(inst.Path, "cache", "x.pyc"))
	assert.NoFileExists(t, filepath.Join(inst.Path, "hivekeeper.pid"))

	got, err := s.Get("simple_http")
	require.NoError(t, err)
	assert.Equal(t, 8888, got.Manifest.Port)
	assert.Equal(t, "service.yaml", got.ManifestFile)

	list, err = s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	entries, err := os.ReadDir(s.Home)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory left behind")
}

func TestInstallConflict(t *testing.T) {
	s := New(t.TempDir())
	m, files := samplePackage(t)
	_, err := s.Install(m, files)
	require.NoError(t, err)

	_, err = s.Install(m, files)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
	assert.ErrorIs(t, err, ErrAlreadyInstalled)
}

func TestGetReflectsDisk(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Get("simple_http")
	assert.True(t, apperr.IsNotFound(err))

	for _, name := range []string{"../etc", "Ghost", "a/b", ""} {
		_, err = s.Get(name)
		assert.True(t, apperr.IsNotFound(err), name)
		assert.Equal(t, 3, apperr.ExitCode(err), name)
	}

	m, files := samplePackage(t)
	_, err = s.Install(m, files)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(s.Dir("simple_http")))
	_, err = s.Get("simple_http")
	assert.True(t, apperr.IsNotFound(err))
}

func TestUninstall(t *testing.T) {
	s := New(t.TempDir())
	m, files := samplePackage(t)
	_, err := s.Install(m, files)
	require.NoError(t, err)

	err = s.Uninstall("simple_http", fakeChecker{running: true})
	assert.True(t, apperr.IsConflict(err))
	assert.ErrorIs(t, err, ErrServiceRunning)

	err = s.Uninstall("simple_http", fakeChecker{err: errors.New("lock busy")})
	assert.Error(t, err)
	assert.DirExists(t, s.Dir("simple_http"))

	// stale runtime record: process gone, record still on disk
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir("simple_http"), "hivekeeper.pid"), []byte(`{"pid":999999}`), 0644))
	require.NoError(t, s.Uninstall("simple_http", fakeChecker{running: false}))
	assert.NoDirExists(t, s.Dir("simple_http"))

	err = s.Uninstall("simple_http", nil)
	assert.True(t, apperr.IsNotFound(err))

	entries, err := os.ReadDir(s.Home)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListSkipsBrokenEntries(t *testing.T) {
	s := New(t.TempDir())
	m, files := samplePackage(t)
	_, err := s.Install(m, files)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(s.Home, "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Home, "hivekeeper.debug.log"), []byte("{}\n"), 0644))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "simple_http", list[0].Name())
}
