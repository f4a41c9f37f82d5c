package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
	logger  *zap.Logger
}

type createReservationRequest struct {
	BusinessID     string    `json:"business_id" binding:"required"`
	ServiceID      string    `json:"service_id" binding:"required"`
	SlotStart      time.Time `json:"slot_start" binding:"required"`
	SlotEnd        time.Time `json:"slot_end" binding:"required"`
	IdempotencyKey string    `json:"idempotency_key"`
	TTLMinutes     *float64  `json:"ttl_minutes"`
}

type capacityResponse struct {
	BusinessID string    `json:"business_id"`
	ServiceID  string    `json:"service_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  int       `json:"available"`
}

func NewReservationHandler(service reservation.ReservationUseCase, logger *zap.Logger) *ReservationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationHandler{service: service, logger: logger}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/reservations", h.create)
	router.GET("/reservations/:id/validation", h.validate)
	router.GET("/capacity", h.capacity)
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.service.CreateReservation(c.Request.Context(), reservation.CreateReservationInput{
		BusinessID:     req.BusinessID,
		ServiceID:      req.ServiceID,
		SlotStart:      req.SlotStart,
		SlotEnd:        req.SlotEnd,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		TTLMinutes:     req.TTLMinutes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *ReservationHandler) validate(c *gin.Context) {
	result, err := h.service.ValidateReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// capacity expects RFC 3339 start and end query parameters.
func (h *ReservationHandler) capacity(c *gin.Context) {
	businessID, serviceID := c.Query("business_id"), c.Query("service_id")
	if businessID == "" || serviceID == "" {
		badRequest(c, errors.New("business_id and service_id are required"))
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		badRequest(c, errors.New("start must be an RFC 3339 timestamp"))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		badRequest(c, errors.New("end must be an RFC 3339 timestamp"))
		return
	}

	window := domain.Window{Start: start.UTC(), End: end.UTC()}
	available, err := h.service.GetAvailableCapacity(c.Request.Context(), businessID, serviceID, window)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, capacityResponse{
		BusinessID: businessID,
		ServiceID:  serviceID,
		Start:      window.Start,
		End:        window.End,
		Available:  available,
	})
}
