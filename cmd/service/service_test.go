package service

import (
	"bytes"
	"strings"
	"testing"

	"hivekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryLine(t *testing.T) {
	d := models.ServiceDetail{Name: "simple_http", Port: 8888, Protocol: "tcp", Alerts: []string{"simple_http", "http_get"}}
	assert.Equal(t, "simple_http (8888/TCP) [Alerts: simple_http, http_get]", summaryLine(d))

	d.Alerts = nil
	assert.Equal(t, "simple_http (8888/TCP) [Alerts: ]", summaryLine(d))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		ok, err := confirm(strings.NewReader(tt.input), &out, "Uninstall simple_http?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "input %q", tt.input)
		assert.Equal(t, "Uninstall simple_http? [y/N]: ", out.String())
	}
}

func TestPrintDetail(t *testing.T) {
	var out bytes.Buffer
	printDetail(&out, &models.ServiceDetail{
		Name:      "simple_http",
		Label:     "Simple HTTP",
		Installed: true,
		Port:      8888,
		Protocol:  "tcp",
		Alerts:    []string{"simple_http"},
		Parameters: []models.ParameterDetail{
			{Name: "port", Type: "int", Required: true},
			{Name: "threading", Type: "bool", Default: false},
		},
		Path:   "/home/x/.hivekeeper/simple_http",
		Status: models.StatusNoSuchService,
	})
	text := out.String()
	assert.Contains(t, text, "Name: simple_http\n")
	assert.Contains(t, text, "Label: Simple HTTP\n")
	assert.Contains(t, text, "Installed: True\n")
	assert.Contains(t, text, "Port: 8888/TCP\n")
	assert.Contains(t, text, "  port (int, required)\n")
	assert.Contains(t, text, "  threading (bool, default: false)\n")
	assert.Contains(t, text, "Status: no such service\n")
	assert.NotContains(t, text, "Pid:")

	out.Reset()
	printDetail(&out, &models.ServiceDetail{Name: "remote", Port: 22, Protocol: "tcp"})
	assert.Contains(t, out.String(), "Installed: False\n")
	assert.NotContains(t, out.String(), "Path:")
}
