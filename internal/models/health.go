package models

// HealthResponse is returned by the management API health check
type HealthResponse struct {
	Version   string  `json:"version" example:"1.0.0"`
	StartTime string  `json:"startTime" example:"2024-01-01T10:00:00Z"`
	Status    string  `json:"status" example:"UP"`
	Uptime    string  `json:"uptime" example:"1h30m45s"`
	Metrics   Metrics `json:"metrics"`
}

type Metrics struct {
	InstalledServices int `json:"installedServices" example:"3"`
	RunningServices   int `json:"runningServices" example:"1"`
}
