package services

import (
	"context"
	"time"

	"hivekeeper/internal/config"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/models"
)

// Server is the state behind the management API.
type Server struct {
	cfg       *config.AppConfig
	manager   *ServiceManager
	version   string
	startTime time.Time
}

func NewServer(cfg *config.AppConfig, manager *ServiceManager, version string) *Server {
	return &Server{cfg: cfg, manager: manager, version: version, startTime: time.Now()}
}

func (s *Server) Manager() *ServiceManager {
	return s.manager
}

/**
 * Health check response
 * @returns {models.HealthResponse} Version, uptime and service counts
 */
func (s *Server) GetHealthz() models.HealthResponse {
	installed, running, err := s.manager.CheckServices()
	status := "UP"
	if err != nil {
		logger.Warnf("health check: %v", err)
		status = "DEGRADED"
	}
	return models.HealthResponse{
		Version:   s.version,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    status,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Metrics: models.Metrics{
			InstalledServices: installed,
			RunningServices:   running,
		},
	}
}

// StartMonitoring cleans stale runtime records every interval until ctx ends.
func (s *Server) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.manager.CheckServices(); err != nil {
				logger.Errorf("Service monitoring error: %v", err)
			}
		}
	}
}
