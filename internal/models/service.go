package models

// ParameterDetail describes one declared startup parameter.
type ParameterDetail struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
}

type ServiceDetail struct {
	Name       string            `json:"name"`
	Label      string            `json:"label,omitempty"`
	Installed  bool              `json:"installed"`
	Port       int               `json:"port"`
	Protocol   string            `json:"protocol"`
	Alerts     []string          `json:"alerts"`
	Parameters []ParameterDetail `json:"parameters"`
	Path       string            `json:"path,omitempty"`
	Status     string            `json:"status"`
	Process    *ProcessDetail    `json:"process,omitempty"`
}

// Status strings printed by `status`
const (
	StatusRunning       = "running"
	StatusNoSuchService = "no such service"
)
