package services

import (
	"context"
	"os"
	"time"

	"hivekeeper/internal/config"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/metrics"
)

func grouping(command string) map[string]string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	g := map[string]string{"instance": host}
	if command != "" {
		g["command"] = command
	}
	return g
}

/**
 * Push the collected metrics once
 * @param {config.MetricsConfig} cfg - Pushgateway settings, empty address disables the push
 * @param {string} command - Command name added to the grouping key
 * @returns {error} Push failure
 */
func PushMetrics(cfg config.MetricsConfig, command string) error {
	return metrics.Push(cfg.Pushgateway, cfg.Job, grouping(command))
}

/**
 * Push metrics periodically until ctx ends
 * @param {context.Context} ctx - Stops the loop, a last push is made on the way out
 * @param {config.MetricsConfig} cfg - Pushgateway settings
 * @param {time.Duration} interval - Push period
 */
func CollectAndPushMetrics(ctx context.Context, cfg config.MetricsConfig, interval time.Duration) {
	if cfg.Pushgateway == "" {
		return
	}
	logger.Infof("pushing metrics to %s every %v", cfg.Pushgateway, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := PushMetrics(cfg, "server"); err != nil {
				logger.Warnf("%v", err)
			}
			return
		case <-ticker.C:
			if err := PushMetrics(cfg, "server"); err != nil {
				logger.Warnf("指标推送失败: %v", err)
			}
		}
	}
}
