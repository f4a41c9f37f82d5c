package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrSlotUnavailable    = errors.New("slot unavailable")
	ErrReservationExpired = errors.New("reservation expired or not found")
	ErrConflict           = errors.New("version conflict")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotFound           = errors.New("not found")
	ErrInvalidID          = errors.New("invalid id")
)

// Validationf returns an error matching ErrValidation with a detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ConflictError reports an optimistic-lock mismatch together with the stored version.
type ConflictError struct {
	CurrentVersion int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: current version is %d", ErrConflict, e.CurrentVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// CurrentVersion extracts the stored version from a conflict error.
func CurrentVersion(err error) (int, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.CurrentVersion, true
	}
	return 0, false
}
