package server

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"hivekeeper/internal/config"
	"hivekeeper/internal/env"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/models"
	"hivekeeper/internal/rpc"
	"hivekeeper/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func TestCreateListeners(t *testing.T) {
	home, err := os.MkdirTemp("", "hk")
	require.NoError(t, err)
	defer os.RemoveAll(home)
	sock := env.SocketPath(home)
	// 遗留的socket文件会被替换
	require.NoError(t, os.WriteFile(sock, nil, 0644))

	ls, err := CreateListeners([]ListenAddr{
		{Network: "tcp", Address: "127.0.0.1:0"},
		{Network: "unix", Address: sock},
	})
	require.NoError(t, err)
	require.Len(t, ls, 2)
	defer func() {
		for _, l := range ls {
			l.Close()
		}
	}()
	fi, err := os.Stat(sock)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	ls2, err := CreateListeners([]ListenAddr{{Network: "tcp", Address: ls[0].Addr().String()}})
	assert.Error(t, err)
	assert.Empty(t, ls2)
}

func TestRouterOverSocket(t *testing.T) {
	home, err := os.MkdirTemp("", "hk")
	require.NoError(t, err)
	defer os.RemoveAll(home)

	cfg := config.Default()
	cfg.Catalog.URL = ""
	sm := services.NewServiceManager(services.ManagerOptions{Home: home, Config: &cfg, Version: "0.1.0"})
	router := NewRouter(services.NewServer(&cfg, sm, "0.1.0"), gin.TestMode)

	ls, err := CreateListeners([]ListenAddr{{Network: "unix", Address: env.SocketPath(home)}})
	require.NoError(t, err)
	srv := &http.Server{Handler: router, ReadHeaderTimeout: time.Second}
	go srv.Serve(ls[0])
	defer srv.Close()

	client := rpc.NewClient(rpc.DefaultHTTPConfig(home, ""))
	var health models.HealthResponse
	require.NoError(t, client.Get(context.Background(), "/healthz", &health))
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, 0, health.Metrics.InstalledServices)

	var list []models.ServiceDetail
	require.NoError(t, client.Get(context.Background(), "/api/v1/services", &list))
	assert.Empty(t, list)
}
