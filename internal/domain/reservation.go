package domain

import "time"

// Reservation is a short-lived hold on capacity. It is never mutated after creation.
type Reservation struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	ServiceID      string    `json:"service_id"`
	SlotStart      time.Time `json:"slot_start"`
	SlotEnd        time.Time `json:"slot_end"`
	IdempotencyKey string    `json:"idempotency_key"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r Reservation) Window() Window {
	return Window{Start: r.SlotStart, End: r.SlotEnd}
}

// IsExpired treats the expiry instant itself as expired.
func (r Reservation) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

type InvalidReason string

const (
	InvalidReasonNotFound InvalidReason = "not_found"
	InvalidReasonExpired  InvalidReason = "expired"
)

// ReservationValidation is the result of checking whether a hold can still be committed.
type ReservationValidation struct {
	Valid  bool          `json:"valid"`
	Reason InvalidReason `json:"reason,omitempty"`
}
