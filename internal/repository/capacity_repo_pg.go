package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OverlapQuery scopes a capacity count to one business/service and window.
type OverlapQuery struct {
	BusinessID string
	ServiceID  string
	Window     domain.Window
	// Now excludes reservations whose expires_at is not after it.
	Now time.Time
	// ExcludeAppointmentID leaves one appointment out of the count (its own slot on reschedule).
	ExcludeAppointmentID string
}

type CapacityRepository interface {
	GetService(ctx context.Context, businessID, serviceID string) (*domain.Service, error)
	LockService(ctx context.Context, businessID, serviceID string) (*domain.Service, error)
	CountOverlapping(ctx context.Context, q OverlapQuery) (int, error)
}

type PGCapacityRepository struct {
	db *pgxpool.Pool
}

func NewCapacityRepository(db *pgxpool.Pool) CapacityRepository {
	return &PGCapacityRepository{db: db}
}

const selectService = `SELECT id, business_id, name, duration_minutes, max_simultaneous_bookings FROM services WHERE id = $1 AND business_id = $2`

func (r *PGCapacityRepository) GetService(ctx context.Context, businessID, serviceID string) (*domain.Service, error) {
	return r.scanService(ctx, selectService, businessID, serviceID)
}

// LockService takes the per-(business, service) row lock that serializes every
// capacity check-and-write for that service until the surrounding tx ends.
func (r *PGCapacityRepository) LockService(ctx context.Context, businessID, serviceID string) (*domain.Service, error) {
	return r.scanService(ctx, selectService+` FOR UPDATE`, businessID, serviceID)
}

func (r *PGCapacityRepository) scanService(ctx context.Context, query, businessID, serviceID string) (*domain.Service, error) {
	var (
		s        domain.Service
		duration int
	)
	err := conn(ctx, r.db).QueryRow(ctx, query, serviceID, businessID).
		Scan(&s.ID, &s.BusinessID, &s.Name, &duration, &s.MaxSimultaneousBookings)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	s.Duration = time.Duration(duration) * time.Minute
	return &s, nil
}

// countOverlapping is the single SQL rendition of domain.Window.Overlaps used for capacity.
const countOverlapping = `
SELECT
	(SELECT COUNT(*) FROM reservations
	  WHERE business_id = $1 AND service_id = $2
	    AND expires_at > $5
	    AND slot_start < $4 AND $3 < slot_end)
  + (SELECT COUNT(*) FROM appointments
	  WHERE business_id = $1 AND service_id = $2
	    AND status <> 'canceled'
	    AND slot_start < $4 AND $3 < slot_end
	    AND ($6::text = '' OR id::text <> $6::text))`

func (r *PGCapacityRepository) CountOverlapping(ctx context.Context, q OverlapQuery) (int, error) {
	var total int
	err := conn(ctx, r.db).QueryRow(ctx, countOverlapping,
		q.BusinessID, q.ServiceID, q.Window.Start, q.Window.End, q.Now, q.ExcludeAppointmentID,
	).Scan(&total)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count overlapping: %w", err)
	}
	return total, nil
}

var _ CapacityRepository = (*PGCapacityRepository)(nil)
