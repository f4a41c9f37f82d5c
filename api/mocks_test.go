package api

import (
	"context"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/appointment"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/cleanup"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"github.com/stretchr/testify/mock"
)

type MockReservationUseCase struct {
	mock.Mock
}

func (m *MockReservationUseCase) CreateReservation(ctx context.Context, input reservation.CreateReservationInput) (*domain.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) ValidateReservation(ctx context.Context, id string) (domain.ReservationValidation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.ReservationValidation), args.Error(1)
}

func (m *MockReservationUseCase) GetAvailableCapacity(ctx context.Context, businessID, serviceID string, window domain.Window) (int, error) {
	args := m.Called(ctx, businessID, serviceID, window)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationUseCase) CleanupExpiredReservations(ctx context.Context) (reservation.CleanupResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(reservation.CleanupResult), args.Error(1)
}

type MockAppointmentUseCase struct {
	mock.Mock
}

func (m *MockAppointmentUseCase) appointment(args mock.Arguments) (*domain.Appointment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}

func (m *MockAppointmentUseCase) CommitReservation(ctx context.Context, reservationID string, contact domain.Contact, actorID *string) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, reservationID, contact, actorID))
}

func (m *MockAppointmentUseCase) CreateManualAppointment(ctx context.Context, input appointment.CreateManualInput) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, input))
}

func (m *MockAppointmentUseCase) UpdateAppointment(ctx context.Context, id string, patch appointment.Patch, expectedVersion int, actorID *string) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, id, patch, expectedVersion, actorID))
}

func (m *MockAppointmentUseCase) CancelAppointment(ctx context.Context, id string, actorID, reason *string) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, id, actorID, reason))
}

func (m *MockAppointmentUseCase) CancelByToken(ctx context.Context, token string, reason *string) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, token, reason))
}

func (m *MockAppointmentUseCase) TransitionStatus(ctx context.Context, id string, to domain.AppointmentStatus, expectedVersion int, actorID *string) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, id, to, expectedVersion, actorID))
}

func (m *MockAppointmentUseCase) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, id))
}

func (m *MockAppointmentUseCase) ListAuditLog(ctx context.Context, appointmentID string) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}

type MockSweepRunner struct {
	mock.Mock
}

func (m *MockSweepRunner) RunOnce(ctx context.Context) (reservation.CleanupResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(reservation.CleanupResult), args.Error(1)
}

func (m *MockSweepRunner) Health(ctx context.Context) (cleanup.Health, error) {
	args := m.Called(ctx)
	return args.Get(0).(cleanup.Health), args.Error(1)
}
