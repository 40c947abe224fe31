package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hivekeeper/internal/config"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/models"
	"hivekeeper/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `name: simple_http
port: 8888
protocol: TCP
parameters:
  - {name: port, type: int, required: true}
alerts: [simple_http]
entrypoint:
  command: "{{.Self}}"
  args: [decoy, simple_http]
`

func TestMain(m *testing.M) {
	logger.InitNop()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	pkg := filepath.Join(t.TempDir(), "simple_http")
	require.NoError(t, os.MkdirAll(pkg, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "service.yaml"), []byte(manifestYAML), 0644))

	cfg := config.Default()
	cfg.Catalog.URL = ""
	sm := services.NewServiceManager(services.ManagerOptions{Home: t.TempDir(), Config: &cfg, Version: "0.1.0"})
	_, err := sm.Install(context.Background(), pkg)
	require.NoError(t, err)
	r := gin.New()
	NewAPIController(services.NewServer(&cfg, sm, "0.1.0")).RegisterRoutes(r)
	NewServiceController(sm).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	w := do(newRouter(t), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UP", resp.Status)
	assert.Equal(t, "0.1.0", resp.Version)
	assert.Equal(t, 1, resp.Metrics.InstalledServices)
	assert.Equal(t, 0, resp.Metrics.RunningServices)
}

func TestServiceRoutes(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodGet, "/api/v1/services")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.ServiceDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "simple_http", list[0].Name)

	w = do(r, http.MethodGet, "/api/v1/services/simple_http")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/services/ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var e models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "service.notexist", e.Code)

	w = do(r, http.MethodGet, "/api/v1/services/simple_http/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.StatusNoSuchService)

	w = do(r, http.MethodPost, "/api/v1/services/simple_http/stop")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stopped":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRouter(t)
	do(r, http.MethodGet, "/healthz")
	w := do(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "hivekeeper_http_requests_total"))
}
