package api

import (
	"net/http"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/appointment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AppointmentHandler struct {
	service appointment.AppointmentUseCase
	logger  *zap.Logger
}

type commitRequest struct {
	domain.Contact
}

type createAppointmentRequest struct {
	BusinessID     string         `json:"business_id" binding:"required"`
	ServiceID      string         `json:"service_id" binding:"required"`
	SlotStart      time.Time      `json:"slot_start" binding:"required"`
	SlotEnd        time.Time      `json:"slot_end" binding:"required"`
	Contact        domain.Contact `json:"contact"`
	Notes          *string        `json:"notes"`
	IdempotencyKey string         `json:"idempotency_key"`
}

type updateAppointmentRequest struct {
	ExpectedVersion int             `json:"expected_version" binding:"required,min=1"`
	SlotStart       *time.Time      `json:"slot_start"`
	SlotEnd         *time.Time      `json:"slot_end"`
	Notes           *string         `json:"notes"`
	Contact         *domain.Contact `json:"contact"`
}

type transitionRequest struct {
	Status          string `json:"status" binding:"required"`
	ExpectedVersion int    `json:"expected_version" binding:"required,min=1"`
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

// createdAppointmentResponse is the only place the cancellation token is returned.
type createdAppointmentResponse struct {
	*domain.Appointment
	CancellationToken string `json:"cancellation_token"`
}

func NewAppointmentHandler(service appointment.AppointmentUseCase, logger *zap.Logger) *AppointmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentHandler{service: service, logger: logger}
}

func (h *AppointmentHandler) Register(router *gin.RouterGroup) {
	router.POST("/reservations/:id/commit", h.commit)
	router.POST("/appointments", h.create)
	router.GET("/appointments/:id", h.get)
	router.PATCH("/appointments/:id", h.update)
	router.POST("/appointments/:id/cancel", h.cancel)
	router.POST("/appointments/:id/status", h.transition)
	router.GET("/appointments/:id/audit", h.audit)
	router.POST("/cancellations/:token", h.cancelByToken)
}

func (h *AppointmentHandler) commit(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	appt, err := h.service.CommitReservation(c.Request.Context(), c.Param("id"), req.Contact, actorID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, createdAppointmentResponse{Appointment: appt, CancellationToken: appt.CancellationToken})
}

func (h *AppointmentHandler) create(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	appt, err := h.service.CreateManualAppointment(c.Request.Context(), appointment.CreateManualInput{
		BusinessID:     req.BusinessID,
		ServiceID:      req.ServiceID,
		SlotStart:      req.SlotStart,
		SlotEnd:        req.SlotEnd,
		Contact:        req.Contact,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		ActorID:        actorID(c),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, createdAppointmentResponse{Appointment: appt, CancellationToken: appt.CancellationToken})
}

func (h *AppointmentHandler) get(c *gin.Context) {
	appt, err := h.service.GetAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) update(c *gin.Context) {
	var req updateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	patch := appointment.Patch{
		SlotStart: req.SlotStart,
		SlotEnd:   req.SlotEnd,
		Notes:     req.Notes,
		Contact:   req.Contact,
	}
	appt, err := h.service.UpdateAppointment(c.Request.Context(), c.Param("id"), patch, req.ExpectedVersion, actorID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	appt, err := h.service.CancelAppointment(c.Request.Context(), c.Param("id"), actorID(c), req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) cancelByToken(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	appt, err := h.service.CancelByToken(c.Request.Context(), c.Param("token"), req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, err := domain.ParseAppointmentStatus(req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	appt, err := h.service.TransitionStatus(c.Request.Context(), c.Param("id"), status, req.ExpectedVersion, actorID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) audit(c *gin.Context) {
	entries, err := h.service.ListAuditLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
