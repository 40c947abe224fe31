package controllers

import (
	"net/http"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/models"
	"hivekeeper/services"

	"github.com/gin-gonic/gin"
)

type ServiceController struct {
	service *services.ServiceManager
}

/**
 * Create new Service controller instance
 * @param {*services.ServiceManager} service - Service manager instance for managing services
 * @returns {*ServiceController} New Service controller instance
 */
func NewServiceController(service *services.ServiceManager) *ServiceController {
	return &ServiceController{
		service: service,
	}
}

/**
 * Register all service API routes to Gin router
 * @param {*gin.Engine} r - Gin router instance
 * @example
 * controller := NewServiceController(svcManager)
 * controller.RegisterRoutes(router)
 */
func (s *ServiceController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.GET("/services", s.ListServices)
	api.GET("/services/:name", s.GetService)
	api.GET("/services/:name/status", s.GetStatus)
	api.POST("/services/:name/stop", s.StopService)
}

// errorResponse maps an error onto an HTTP status and error code.
func errorResponse(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case apperr.IsNotFound(err):
		status, code = http.StatusNotFound, "service.notexist"
	case apperr.IsValidation(err):
		status, code = http.StatusBadRequest, "request.invalid"
	case apperr.IsConflict(err):
		status, code = http.StatusConflict, "service.conflict"
	case apperr.IsTimeout(err):
		status, code = http.StatusGatewayTimeout, "service.timeout"
	}
	c.JSON(status, &models.ErrorResponse{Code: code, Error: err.Error()})
}

// ListServices lists all installed services
//
//	@Summary		List all services
//	@Description	Get list of installed services with their current status
//	@Tags			Services
//	@Produce		json
//	@Success		200	{array}		models.ServiceDetail	"List of services"
//	@Failure		500	{object}	models.ErrorResponse	"Internal server error response"
//	@Router			/api/v1/services [get]
func (s *ServiceController) ListServices(c *gin.Context) {
	list, err := s.service.List()
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetService returns the details of one service
//
//	@Summary		Get service
//	@Tags			Services
//	@Produce		json
//	@Param			name	path		string					true	"Service name"
//	@Success		200		{object}	models.ServiceDetail	"Service detail"
//	@Failure		404		{object}	models.ErrorResponse	"Service not found error response"
//	@Router			/api/v1/services/{name} [get]
func (s *ServiceController) GetService(c *gin.Context) {
	d, err := s.service.Show(c.Request.Context(), c.Param("name"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetStatus reports "running" or "no such service".
func (s *ServiceController) GetStatus(c *gin.Context) {
	d := s.service.Status(c.Param("name"))
	c.JSON(http.StatusOK, gin.H{"name": d.Name, "status": d.Status})
}

// StopService stops a running service
//
//	@Summary		Stop service
//	@Tags			Services
//	@Produce		json
//	@Param			name	path		string					true	"Service name"
//	@Success		200		{object}	map[string]interface{}	"Service stop response"
//	@Failure		504		{object}	models.ErrorResponse	"Port not released in time"
//	@Router			/api/v1/services/{name}/stop [post]
func (s *ServiceController) StopService(c *gin.Context) {
	name := c.Param("name")
	stopped, err := s.service.Stop(c.Request.Context(), name)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "stopped": stopped})
}
