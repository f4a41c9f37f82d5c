package api

import (
	"context"
	"net/http"

	"github.com/ZondaOne/rhivo-app-sub003/internal/service/cleanup"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SweepRunner is satisfied by *cleanup.Sweeper.
type SweepRunner interface {
	RunOnce(ctx context.Context) (reservation.CleanupResult, error)
	Health(ctx context.Context) (cleanup.Health, error)
}

type MaintenanceHandler struct {
	sweeper SweepRunner
	logger  *zap.Logger
}

func NewMaintenanceHandler(sweeper SweepRunner, logger *zap.Logger) *MaintenanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceHandler{sweeper: sweeper, logger: logger}
}

func (h *MaintenanceHandler) Register(router *gin.RouterGroup) {
	router.POST("/maintenance/cleanup", h.cleanup)
	router.GET("/maintenance/cleanup", h.health)
}

func (h *MaintenanceHandler) cleanup(c *gin.Context) {
	result, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *MaintenanceHandler) health(c *gin.Context) {
	health, err := h.sweeper.Health(c.Request.Context())
	if err != nil {
		h.logger.Warn("load cleanup health", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, Unavailable(err))
		return
	}
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
