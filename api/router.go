package api

import (
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/appointment"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BasePath is where the REST API is mounted.
const BasePath = "/api/v1"

func NewRouter(
	logger *zap.Logger,
	reservations reservation.ReservationUseCase,
	appointments appointment.AppointmentUseCase,
	sweeper SweepRunner,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	v1 := router.Group(BasePath)
	NewReservationHandler(reservations, logger).Register(v1)
	NewAppointmentHandler(appointments, logger).Register(v1)
	NewMaintenanceHandler(sweeper, logger).Register(v1)
	return router
}
