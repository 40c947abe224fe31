package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"hivekeeper/internal/env"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/models"
)

// HTTPConfig 定义管理接口客户端配置
type HTTPConfig struct {
	Address string        // socket路径或tcp地址
	Network string        // unix,tcp
	Timeout time.Duration // 默认超时时间
}

/**
 * Default client configuration for a home directory
 * @param {string} home - Home directory of the management server
 * @param {string} tcpAddress - Fallback address when no socket exists
 * @returns {*HTTPConfig} Unix socket config when <home>/hivekeeper.sock exists, else tcp
 */
func DefaultHTTPConfig(home, tcpAddress string) *HTTPConfig {
	c := &HTTPConfig{
		Address: env.SocketPath(home),
		Network: "unix",
		Timeout: 5 * time.Second,
	}
	if _, err := os.Stat(c.Address); err != nil {
		c.Address = tcpAddress
		c.Network = "tcp"
	}
	return c
}

// APIError is a non-2xx answer of the management API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// Client talks to the management API over a unix socket or tcp.
type Client struct {
	config *HTTPConfig
	client *http.Client
}

func NewClient(config *HTTPConfig) *Client {
	dialer := &net.Dialer{Timeout: config.Timeout}
	transport := &http.Transport{
		// 请求URL中的主机名被忽略，始终连接配置的地址
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, config.Network, config.Address)
		},
		DisableKeepAlives: true,
	}
	return &Client{
		config: config,
		client: &http.Client{Transport: transport, Timeout: config.Timeout},
	}
}

// Get decodes the JSON answer of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends data as JSON and decodes the answer into out.
func (c *Client) Post(ctx context.Context, path string, data, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, data, out)
}

func (c *Client) do(ctx context.Context, method, path string, data, out interface{}) error {
	var body io.Reader
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to serialize data: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://hivekeeper"+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	logger.Debugf("rpc %s %s via %s://%s", method, path, c.config.Network, c.config.Address)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to management server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		var e models.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Code, apiErr.Message = e.Code, e.Error
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
