package appointment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/clock"
	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/ZondaOne/rhivo-app-sub003/internal/repository"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/appointment"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/capacity"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"github.com/ZondaOne/rhivo-app-sub003/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	pool         *pgxpool.Pool
	clock        *clock.Manual
	reservations *reservation.ReservationService
	appointments *appointment.AppointmentService
	businessID   string
	serviceID    string
	window       domain.Window
}

func newHarness(t *testing.T, capacityLimit int) *harness {
	t.Helper()
	ctx := context.Background()
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	clk := clock.NewManual(now)
	tx := repository.NewTransactor(pool)
	guard := capacity.NewGuard(repository.NewCapacityRepository(pool))
	resRepo := repository.NewReservationRepository(pool)
	apptRepo := repository.NewAppointmentRepository(pool)

	businessID, serviceID := testutil.InsertService(t, ctx, pool, "Consultation", capacityLimit)
	start := now.Add(48 * time.Hour).Truncate(time.Hour)

	return &harness{
		pool:         pool,
		clock:        clk,
		reservations: reservation.NewReservationService(tx, resRepo, guard, clk,
			reservation.WithCommittedKeys(apptRepo)),
		appointments: appointment.NewAppointmentService(tx, apptRepo, resRepo,
			repository.NewAuditRepository(pool), guard, clk),
		businessID: businessID,
		serviceID:  serviceID,
		window:     domain.Window{Start: start, End: start.Add(time.Hour)},
	}
}

func (h *harness) reserve(ctx context.Context, key string, ttl *float64) (*domain.Reservation, error) {
	return h.reservations.CreateReservation(ctx, reservation.CreateReservationInput{
		BusinessID:     h.businessID,
		ServiceID:      h.serviceID,
		SlotStart:      h.window.Start,
		SlotEnd:        h.window.End,
		IdempotencyKey: key,
		TTLMinutes:     ttl,
	})
}

func (h *harness) available(t *testing.T) int {
	t.Helper()
	n, err := h.reservations.GetAvailableCapacity(context.Background(), h.businessID, h.serviceID, h.window)
	require.NoError(t, err)
	return n
}

func guest() domain.Contact {
	email := "guest@example.com"
	return domain.Contact{Email: &email}
}

func countOutcomes(errs []error) (ok, unavailable, other int) {
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrSlotUnavailable):
			unavailable++
		default:
			other++
		}
	}
	return ok, unavailable, other
}

func TestNoOverbooking_ConcurrentReservations(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.reserve(ctx, fmt.Sprintf("reserve-%d-%s", i, uuid.NewString()), nil)
		}(i)
	}
	wg.Wait()

	ok, unavailable, other := countOutcomes(errs)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 8, unavailable)
	assert.Zero(t, other)
	assert.Equal(t, 0, h.available(t))
}

func TestNoOverbooking_ConcurrentManualAppointments(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	staff := "staff-1"

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.appointments.CreateManualAppointment(ctx, appointment.CreateManualInput{
				BusinessID:     h.businessID,
				ServiceID:      h.serviceID,
				SlotStart:      h.window.Start,
				SlotEnd:        h.window.End,
				Contact:        guest(),
				IdempotencyKey: fmt.Sprintf("manual-%d-%s", i, uuid.NewString()),
				ActorID:        &staff,
			})
		}(i)
	}
	wg.Wait()

	ok, unavailable, other := countOutcomes(errs)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 8, unavailable)
	assert.Zero(t, other)
	assert.Equal(t, 2, testutil.CountRows(t, ctx, h.pool, "audit_logs", "action = 'created'"))
}

func TestIdempotentReserve(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	first, err := h.reserve(ctx, "same-key", nil)
	require.NoError(t, err)
	second, err := h.reserve(ctx, "same-key", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt))
	assert.Equal(t, 1, testutil.CountRows(t, ctx, h.pool, "reservations", "idempotency_key = $1", "same-key"))
	assert.Equal(t, 1, h.available(t))
}

func TestCommitAfterExpiry(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	ttl := 0.05

	res, err := h.reserve(ctx, "short-hold", &ttl)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, res.ExpiresAt.Sub(res.CreatedAt))

	h.clock.Advance(4 * time.Second)

	_, err = h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
	assert.ErrorIs(t, err, domain.ErrReservationExpired)
	assert.Zero(t, testutil.CountRows(t, ctx, h.pool, "appointments", "origin_reservation_id = $1", res.ID))
}

func TestCommitExpiresWhileWaitingForServiceLock(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	ttl := 0.05

	res, err := h.reserve(ctx, "slow-commit", &ttl)
	require.NoError(t, err)

	blocker, err := h.pool.Begin(ctx)
	require.NoError(t, err)
	_, err = blocker.Exec(ctx, `SELECT id FROM services WHERE id = $1 FOR UPDATE`, h.serviceID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
		done <- err
	}()

	select {
	case err := <-done:
		_ = blocker.Rollback(ctx)
		t.Fatalf("commit finished while the service row was locked: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	h.clock.Advance(4 * time.Second)
	require.NoError(t, blocker.Rollback(ctx))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrReservationExpired)
	case <-time.After(10 * time.Second):
		t.Fatal("commit did not return after the service row was released")
	}
	assert.Zero(t, testutil.CountRows(t, ctx, h.pool, "appointments", "origin_reservation_id = $1", res.ID))
}

func TestExpiredHoldCannotBeCommittedAfterSlotIsRetaken(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	ttl := 0.05

	stale, err := h.reserve(ctx, "stale-hold", &ttl)
	require.NoError(t, err)
	h.clock.Advance(4 * time.Second)

	_, err = h.reserve(ctx, "fresh-hold", nil)
	require.NoError(t, err)

	_, err = h.appointments.CommitReservation(ctx, stale.ID, guest(), nil)
	assert.ErrorIs(t, err, domain.ErrReservationExpired)
	assert.Equal(t, 0, h.available(t))
	assert.Zero(t, testutil.CountRows(t, ctx, h.pool, "appointments", "business_id = $1", h.businessID))
}

func TestReserveRetryAfterCommit(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	res, err := h.reserve(ctx, "retry-after-commit", nil)
	require.NoError(t, err)
	_, err = h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, h.available(t))

	_, err = h.reserve(ctx, "retry-after-commit", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 1, h.available(t))
	assert.Zero(t, testutil.CountRows(t, ctx, h.pool, "reservations", "idempotency_key = $1", "retry-after-commit"))
}

func TestConcurrentDoubleCommit(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	res, err := h.reserve(ctx, "double-commit", nil)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
		}(i)
	}
	wg.Wait()

	succeeded, expired := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if errors.Is(err, domain.ErrReservationExpired) {
			expired++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, expired)
	assert.Zero(t, testutil.CountRows(t, ctx, h.pool, "reservations", "id = $1", res.ID))
}

func TestOptimisticLock(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	res, err := h.reserve(ctx, "optimistic", nil)
	require.NoError(t, err)
	appt, err := h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, appt.Version)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			notes := fmt.Sprintf("edit %d", i)
			_, errs[i] = h.appointments.UpdateAppointment(ctx, appt.ID, appointment.Patch{Notes: &notes}, 1, nil)
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if errors.Is(err, domain.ErrConflict) {
			conflicts++
			current, ok := domain.CurrentVersion(err)
			assert.True(t, ok)
			assert.Equal(t, 2, current)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)

	stored, err := h.appointments.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestCancelIdempotence(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	staff := "staff-1"

	res, err := h.reserve(ctx, "cancel-twice", nil)
	require.NoError(t, err)
	appt, err := h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
	require.NoError(t, err)

	first, err := h.appointments.CancelAppointment(ctx, appt.ID, &staff, nil)
	require.NoError(t, err)
	second, err := h.appointments.CancelAppointment(ctx, appt.ID, &staff, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.AppointmentStatusCanceled, second.Status)
	assert.Equal(t, first.Version, second.Version)
	assert.NotNil(t, second.DeletedAt)
	assert.Equal(t, 1, testutil.CountRows(t, ctx, h.pool, "audit_logs",
		"appointment_id = $1 AND action = 'canceled'", appt.ID))

	trail, err := h.appointments.ListAuditLog(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.AuditActionCreated, trail[0].Action)
	assert.Equal(t, domain.AuditActionCanceled, trail[1].Action)
}

func TestCapacityAccounting(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	assert.Equal(t, 2, h.available(t))

	res, err := h.reserve(ctx, "accounting", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.available(t))

	appt, err := h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.available(t))

	_, err = h.appointments.CancelAppointment(ctx, appt.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, h.available(t))
}

func TestRescheduleExcludesOwnSlot(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	res, err := h.reserve(ctx, "reschedule", nil)
	require.NoError(t, err)
	appt, err := h.appointments.CommitReservation(ctx, res.ID, guest(), nil)
	require.NoError(t, err)

	// Shifting by 30 minutes overlaps the appointment's own slot, which must not count against it.
	newStart := h.window.Start.Add(30 * time.Minute)
	newEnd := h.window.End.Add(30 * time.Minute)
	moved, err := h.appointments.UpdateAppointment(ctx, appt.ID,
		appointment.Patch{SlotStart: &newStart, SlotEnd: &newEnd}, 1, nil)
	require.NoError(t, err)
	assert.True(t, moved.SlotStart.Equal(newStart))
	assert.Equal(t, 2, moved.Version)

	// The old window is partly free now but still overlaps the moved appointment.
	_, err = h.reserve(ctx, "blocked", nil)
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
}

func TestCleanupRemovesOnlyExpired(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	short := 0.05

	_, err := h.reserve(ctx, "expires", &short)
	require.NoError(t, err)
	_, err = h.reserve(ctx, "stays", nil)
	require.NoError(t, err)

	h.clock.Advance(3 * time.Second)
	assert.Equal(t, 2, h.available(t))

	result, err := h.reservations.CleanupExpiredReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RemovedCount)

	again, err := h.reservations.CleanupExpiredReservations(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.RemovedCount)
	assert.Equal(t, 1, testutil.CountRows(t, ctx, h.pool, "reservations", "idempotency_key = $1", "stays"))
}
