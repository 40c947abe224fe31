package middleware

import (
	"strconv"
	"time"

	"hivekeeper/internal/metrics"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP请求统计中间件
 * @param {string} server - Server label, the decoy service name or "api"
 * @description
 * - 统计请求数量，按路由和状态码区分
 * - 记录请求处理时间
 * - 未匹配路由的请求记为 "unmatched"，避免攻击者的随机路径撑爆标签基数
 */
func MetricsMiddleware(server string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestCount.WithLabelValues(server, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(server, route).Observe(time.Since(start).Seconds())
	}
}
