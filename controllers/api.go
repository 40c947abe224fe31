package controllers

import (
	"hivekeeper/internal/metrics"
	"hivekeeper/internal/middleware"
	"hivekeeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIController struct {
	server *services.Server
}

/**
 * Create new API controller instance
 * @param {*services.Server} server - Management server state
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(server *services.Server) *APIController {
	return &APIController{
		server: server,
	}
}

/**
 * Register system routes
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - /healthz: readiness check with service counts
 * - /metrics: Prometheus exposition of the hivekeeper registry
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.Use(middleware.MetricsMiddleware("api"))
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
}

// @Summary 业务就绪探针
// @Description 返回版本、启动时间、健康状态以及已安装和运行中的服务数量
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(200, a.server.GetHealthz())
}
