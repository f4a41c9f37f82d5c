// Package capacity holds the one primitive every capacity-affecting write goes through:
// lock the service row, count overlapping bookings, and only then write.
package capacity

import (
	"context"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/ZondaOne/rhivo-app-sub003/internal/repository"
)

type Ledger interface {
	GetService(ctx context.Context, businessID, serviceID string) (*domain.Service, error)
	LockService(ctx context.Context, businessID, serviceID string) (*domain.Service, error)
	CountOverlapping(ctx context.Context, q repository.OverlapQuery) (int, error)
}

type Guard struct {
	ledger Ledger
}

func NewGuard(ledger Ledger) *Guard {
	return &Guard{ledger: ledger}
}

// Claim asks for one unit of capacity in Window.
type Claim struct {
	BusinessID string
	ServiceID  string
	Window     domain.Window
	Now        time.Time
	// ExcludeAppointmentID is set on reschedule so the appointment does not compete with itself.
	ExcludeAppointmentID string
}

// Claim must be called with a transactional context. It holds the service row lock,
// fails with ErrSlotUnavailable when nothing is left, and otherwise runs write while
// the lock is still held.
func (g *Guard) Claim(ctx context.Context, c Claim, write func(ctx context.Context) error) error {
	svc, err := g.ledger.LockService(ctx, c.BusinessID, c.ServiceID)
	if err != nil {
		return err
	}

	used, err := g.ledger.CountOverlapping(ctx, c.overlapQuery())
	if err != nil {
		return err
	}
	if remaining(svc, used) < 1 {
		return domain.ErrSlotUnavailable
	}
	return write(ctx)
}

// Lock takes the service row lock without counting. Writers that consume capacity already
// counted elsewhere (a committed hold) use it to serialize with Claim.
func (g *Guard) Lock(ctx context.Context, businessID, serviceID string) error {
	_, err := g.ledger.LockService(ctx, businessID, serviceID)
	return err
}

// Available is a plain read of the same arithmetic Claim enforces.
func (g *Guard) Available(ctx context.Context, c Claim) (int, error) {
	svc, err := g.ledger.GetService(ctx, c.BusinessID, c.ServiceID)
	if err != nil {
		return 0, err
	}
	used, err := g.ledger.CountOverlapping(ctx, c.overlapQuery())
	if err != nil {
		return 0, err
	}
	return remaining(svc, used), nil
}

func (c Claim) overlapQuery() repository.OverlapQuery {
	return repository.OverlapQuery{
		BusinessID:           c.BusinessID,
		ServiceID:            c.ServiceID,
		Window:               c.Window,
		Now:                  c.Now,
		ExcludeAppointmentID: c.ExcludeAppointmentID,
	}
}

func remaining(svc *domain.Service, used int) int {
	left := svc.MaxSimultaneousBookings - used
	if left < 0 {
		return 0
	}
	return left
}
