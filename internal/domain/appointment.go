package domain

import (
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
)

func (s AppointmentStatus) IsTerminal() bool {
	return s != AppointmentStatusConfirmed
}

// CanTransitionTo allows confirmed -> {completed, no_show, canceled} only.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s != AppointmentStatusConfirmed {
		return false
	}
	switch next {
	case AppointmentStatusCompleted, AppointmentStatusNoShow, AppointmentStatusCanceled:
		return true
	default:
		return false
	}
}

func ParseAppointmentStatus(raw string) (AppointmentStatus, error) {
	switch s := AppointmentStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case AppointmentStatusConfirmed, AppointmentStatusCompleted, AppointmentStatusNoShow, AppointmentStatusCanceled:
		return s, nil
	default:
		return "", Validationf("unknown status %q", raw)
	}
}

// Contact identifies who the appointment is for: a known customer, a guest, or both.
type Contact struct {
	CustomerID *string `json:"customer_id,omitempty"`
	Name       *string `json:"guest_name,omitempty"`
	Email      *string `json:"guest_email,omitempty"`
	Phone      *string `json:"guest_phone,omitempty"`
}

func (c Contact) Validate() error {
	if blank(c.CustomerID) && blank(c.Email) && blank(c.Phone) {
		return Validationf("customer_id, guest_email or guest_phone is required")
	}
	if !blank(c.Email) && !strings.Contains(*c.Email, "@") {
		return Validationf("guest_email %q is not an email address", *c.Email)
	}
	return nil
}

// Appointment is a durable booking. Every mutation increments Version by exactly one.
type Appointment struct {
	ID                  string            `json:"id"`
	BusinessID          string            `json:"business_id"`
	ServiceID           string            `json:"service_id"`
	CustomerID          *string           `json:"customer_id,omitempty"`
	GuestName           *string           `json:"guest_name,omitempty"`
	GuestEmail          *string           `json:"guest_email,omitempty"`
	GuestPhone          *string           `json:"guest_phone,omitempty"`
	Notes               *string           `json:"notes,omitempty"`
	SlotStart           time.Time         `json:"slot_start"`
	SlotEnd             time.Time         `json:"slot_end"`
	Status              AppointmentStatus `json:"status"`
	IdempotencyKey      string            `json:"idempotency_key"`
	OriginReservationID *string           `json:"origin_reservation_id,omitempty"`
	CancellationToken   string            `json:"-"`
	CancellationReason  *string           `json:"cancellation_reason,omitempty"`
	Version             int               `json:"version"`
	DeletedAt           *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (a Appointment) Window() Window {
	return Window{Start: a.SlotStart, End: a.SlotEnd}
}

func (a *Appointment) ApplyContact(c Contact) {
	a.CustomerID = c.CustomerID
	a.GuestName = c.Name
	a.GuestEmail = c.Email
	a.GuestPhone = c.Phone
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
