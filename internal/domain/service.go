package domain

import "time"

// Service is a bookable unit of a business. Read-only to the booking core.
type Service struct {
	ID                      string
	BusinessID              string
	Name                    string
	Duration                time.Duration
	MaxSimultaneousBookings int
}
