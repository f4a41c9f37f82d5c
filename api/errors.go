package api

import (
	"errors"
	"net/http"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeValidation         = "validation_error"
	codeSlotUnavailable    = "slot_unavailable"
	codeReservationExpired = "reservation_expired"
	codeVersionConflict    = "version_conflict"
	codeInvalidTransition  = "invalid_transition"
	codeNotFound           = "not_found"
	codeInternal           = "internal_error"

	// CodeUnavailable marks health reads that could not load sweeper stats.
	CodeUnavailable = "unavailable"
)

// ErrorResponse is the body of every error reply, including the health endpoints.
type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code"`
	CurrentVersion *int   `json:"current_version,omitempty"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, domain.ErrSlotUnavailable):
		return http.StatusConflict, codeSlotUnavailable
	case errors.Is(err, domain.ErrReservationExpired):
		return http.StatusGone, codeReservationExpired
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, codeVersionConflict
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, codeInvalidTransition
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidID):
		return http.StatusNotFound, codeNotFound
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if v, ok := domain.CurrentVersion(err); ok {
		resp.CurrentVersion = &v
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

// Unavailable builds the 503 body used when health state cannot be read.
func Unavailable(err error) ErrorResponse {
	return ErrorResponse{Error: err.Error(), Code: CodeUnavailable}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: codeValidation})
}
