package domain

import "time"

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow validates that start precedes end.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, Validationf("slot_start and slot_end are required")
	}
	if !start.Before(end) {
		return Window{}, Validationf("slot_start must be before slot_end")
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether two half-open windows share at least one instant.
// Every capacity count in the system uses this predicate (and its SQL twin).
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) Equal(other Window) bool {
	return w.Start.Equal(other.Start) && w.End.Equal(other.End)
}
