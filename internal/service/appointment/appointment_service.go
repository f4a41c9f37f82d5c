package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/clock"
	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/ZondaOne/rhivo-app-sub003/internal/kafka"
	"github.com/ZondaOne/rhivo-app-sub003/internal/repository"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/capacity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AppointmentUseCase interface {
	CommitReservation(ctx context.Context, reservationID string, contact domain.Contact, actorID *string) (*domain.Appointment, error)
	CreateManualAppointment(ctx context.Context, input CreateManualInput) (*domain.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, patch Patch, expectedVersion int, actorID *string) (*domain.Appointment, error)
	CancelAppointment(ctx context.Context, id string, actorID, reason *string) (*domain.Appointment, error)
	CancelByToken(ctx context.Context, token string, reason *string) (*domain.Appointment, error)
	TransitionStatus(ctx context.Context, id string, to domain.AppointmentStatus, expectedVersion int, actorID *string) (*domain.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	ListAuditLog(ctx context.Context, appointmentID string) ([]domain.AuditLogEntry, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type CreateManualInput struct {
	BusinessID     string         `json:"business_id"`
	ServiceID      string         `json:"service_id"`
	SlotStart      time.Time      `json:"slot_start"`
	SlotEnd        time.Time      `json:"slot_end"`
	Contact        domain.Contact `json:"contact"`
	Notes          *string        `json:"notes,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	ActorID        *string        `json:"actor_id,omitempty"`
}

// Patch lists the mutable appointment fields. Nil fields are left unchanged.
// Status changes go through TransitionStatus or CancelAppointment instead.
type Patch struct {
	SlotStart *time.Time      `json:"slot_start,omitempty"`
	SlotEnd   *time.Time      `json:"slot_end,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
	Contact   *domain.Contact `json:"contact,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.SlotStart == nil && p.SlotEnd == nil && p.Notes == nil && p.Contact == nil
}

type AppointmentService struct {
	tx           repository.Transactor
	appointments repository.AppointmentRepository
	reservations repository.ReservationRepository
	audit        repository.AuditRepository
	guard        *capacity.Guard
	clock        clock.Clock
	logger       *zap.Logger
	producer     Producer
	topic        string
}

type AppointmentServiceOption func(*AppointmentService)

func WithLogger(logger *zap.Logger) AppointmentServiceOption {
	return func(s *AppointmentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPublisher(producer Producer, topic string) AppointmentServiceOption {
	return func(s *AppointmentService) {
		s.producer = producer
		s.topic = topic
	}
}

func NewAppointmentService(
	tx repository.Transactor,
	appointments repository.AppointmentRepository,
	reservations repository.ReservationRepository,
	audit repository.AuditRepository,
	guard *capacity.Guard,
	clk clock.Clock,
	opts ...AppointmentServiceOption,
) *AppointmentService {
	s := &AppointmentService{
		tx:           tx,
		appointments: appointments,
		reservations: reservations,
		audit:        audit,
		guard:        guard,
		clock:        clk,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CommitReservation turns a live hold into a confirmed appointment. The reservation row lock
// serializes double commits; the loser sees the row gone and gets ErrReservationExpired.
// Expiry is evaluated after both the reservation and the service row locks are held.
func (s *AppointmentService) CommitReservation(ctx context.Context, reservationID string, contact domain.Contact, actorID *string) (*domain.Appointment, error) {
	if err := contact.Validate(); err != nil {
		return nil, err
	}

	var appt *domain.Appointment
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.reservations.GetForUpdate(txCtx, reservationID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
				return domain.ErrReservationExpired
			}
			return err
		}
		// Lock order: reservation row, then service row.
		if err := s.guard.Lock(txCtx, res.BusinessID, res.ServiceID); err != nil {
			return err
		}
		now := s.clock.Now()
		if res.IsExpired(now) {
			return domain.ErrReservationExpired
		}

		origin := res.ID
		appt = &domain.Appointment{
			ID:                  uuid.NewString(),
			BusinessID:          res.BusinessID,
			ServiceID:           res.ServiceID,
			SlotStart:           res.SlotStart,
			SlotEnd:             res.SlotEnd,
			Status:              domain.AppointmentStatusConfirmed,
			IdempotencyKey:      res.IdempotencyKey,
			OriginReservationID: &origin,
			CancellationToken:   uuid.NewString(),
			Version:             1,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		appt.ApplyContact(contact)

		created, err := s.appointments.Create(txCtx, appt)
		if err != nil {
			return err
		}
		if !created {
			return domain.Validationf("idempotency key %q is already used by another appointment", res.IdempotencyKey)
		}
		if err := s.reservations.Delete(txCtx, res.ID); err != nil {
			return err
		}
		return s.appendAudit(txCtx, domain.AuditActionCreated, actorID, nil, appt, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation committed",
		zap.String("reservation_id", reservationID),
		zap.String("appointment_id", appt.ID))
	s.publish(ctx, kafka.EventAppointmentCreated, appt, actorID)
	return appt, nil
}

// CreateManualAppointment books directly, without a hold, through the same capacity guard
// as reservations. Idempotency replay returns the stored appointment unchanged.
func (s *AppointmentService) CreateManualAppointment(ctx context.Context, input CreateManualInput) (*domain.Appointment, error) {
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return nil, domain.Validationf("idempotency_key is required")
	}

	existing, err := s.appointments.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	window, err := domain.NewWindow(input.SlotStart, input.SlotEnd)
	if err != nil {
		return nil, err
	}
	if window.Start.Before(now) {
		return nil, domain.Validationf("slot_start is in the past")
	}
	if input.BusinessID == "" || input.ServiceID == "" {
		return nil, domain.Validationf("business_id and service_id are required")
	}
	if err := input.Contact.Validate(); err != nil {
		return nil, err
	}

	candidate := &domain.Appointment{
		ID:                uuid.NewString(),
		BusinessID:        input.BusinessID,
		ServiceID:         input.ServiceID,
		Notes:             input.Notes,
		SlotStart:         window.Start,
		SlotEnd:           window.End,
		Status:            domain.AppointmentStatusConfirmed,
		IdempotencyKey:    key,
		CancellationToken: uuid.NewString(),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	candidate.ApplyContact(input.Contact)

	var (
		result  *domain.Appointment
		created bool
	)
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		claim := capacity.Claim{
			BusinessID: input.BusinessID,
			ServiceID:  input.ServiceID,
			Window:     window,
			Now:        now,
		}
		return s.guard.Claim(txCtx, claim, func(txCtx context.Context) error {
			ok, err := s.appointments.Create(txCtx, candidate)
			if err != nil {
				return err
			}
			if !ok {
				winner, err := s.appointments.FindByIdempotencyKey(txCtx, key)
				if err != nil {
					return err
				}
				if winner == nil {
					return fmt.Errorf("appointment with idempotency key %q conflicted but was not found", key)
				}
				result = winner
				return nil
			}
			result, created = candidate, true
			return s.appendAudit(txCtx, domain.AuditActionCreated, input.ActorID, nil, candidate, now)
		})
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("manual appointment created",
			zap.String("appointment_id", result.ID),
			zap.String("business_id", result.BusinessID),
			zap.String("service_id", result.ServiceID))
		s.publish(ctx, kafka.EventAppointmentCreated, result, input.ActorID)
	}
	return result, nil
}

// UpdateAppointment locks the appointment row first, then (on reschedule) the service row.
func (s *AppointmentService) UpdateAppointment(ctx context.Context, id string, patch Patch, expectedVersion int, actorID *string) (*domain.Appointment, error) {
	if patch.IsEmpty() {
		return nil, domain.Validationf("patch has no fields to update")
	}
	if patch.Contact != nil {
		if err := patch.Contact.Validate(); err != nil {
			return nil, err
		}
	}

	var after *domain.Appointment
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		current, err := s.lockAppointment(txCtx, id)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return &domain.ConflictError{CurrentVersion: current.Version}
		}
		if current.Status.IsTerminal() {
			return domain.ErrInvalidTransition
		}

		next := *current
		if patch.Notes != nil {
			next.Notes = patch.Notes
		}
		if patch.Contact != nil {
			next.ApplyContact(*patch.Contact)
		}

		write := func(txCtx context.Context) error {
			next.Version = current.Version + 1
			next.UpdatedAt = now
			if err := s.save(txCtx, &next, current.Version); err != nil {
				return err
			}
			return s.appendAudit(txCtx, domain.AuditActionUpdated, actorID, current, &next, now)
		}

		window, rescheduled, err := rescheduleWindow(current, patch)
		if err != nil {
			return err
		}
		if !rescheduled {
			after = &next
			return write(txCtx)
		}
		if window.Start.Before(now) {
			return domain.Validationf("slot_start is in the past")
		}
		next.SlotStart, next.SlotEnd = window.Start, window.End

		claim := capacity.Claim{
			BusinessID:           current.BusinessID,
			ServiceID:            current.ServiceID,
			Window:               window,
			Now:                  now,
			ExcludeAppointmentID: current.ID,
		}
		after = &next
		return s.guard.Claim(txCtx, claim, write)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventAppointmentUpdated, after, actorID)
	return after, nil
}

// CancelAppointment is idempotent: an already-canceled appointment is returned as-is
// without a new version or audit entry.
func (s *AppointmentService) CancelAppointment(ctx context.Context, id string, actorID, reason *string) (*domain.Appointment, error) {
	return s.cancel(ctx, actorID, reason, func(txCtx context.Context) (*domain.Appointment, error) {
		return s.lockAppointment(txCtx, id)
	})
}

// CancelByToken lets a guest cancel with the token minted at creation. No actor is recorded.
func (s *AppointmentService) CancelByToken(ctx context.Context, token string, reason *string) (*domain.Appointment, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.Validationf("cancellation token is required")
	}
	return s.cancel(ctx, nil, reason, func(txCtx context.Context) (*domain.Appointment, error) {
		appt, err := s.appointments.GetByCancellationTokenForUpdate(txCtx, token)
		if errors.Is(err, domain.ErrInvalidID) {
			return nil, domain.ErrNotFound
		}
		return appt, err
	})
}

func (s *AppointmentService) cancel(
	ctx context.Context,
	actorID, reason *string,
	load func(txCtx context.Context) (*domain.Appointment, error),
) (*domain.Appointment, error) {
	var (
		result  *domain.Appointment
		changed bool
	)
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		current, err := load(txCtx)
		if err != nil {
			return err
		}
		if current.Status == domain.AppointmentStatusCanceled {
			result = current
			return nil
		}
		next, err := s.transition(txCtx, current, domain.AppointmentStatusCanceled, actorID, reason)
		if err != nil {
			return err
		}
		result, changed = next, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("appointment canceled", zap.String("appointment_id", result.ID))
		s.publish(ctx, kafka.EventAppointmentCanceled, result, actorID)
	}
	return result, nil
}

// TransitionStatus moves a confirmed appointment to completed, no_show or canceled.
// Canceling an already-canceled appointment succeeds without change, as CancelAppointment does.
func (s *AppointmentService) TransitionStatus(ctx context.Context, id string, to domain.AppointmentStatus, expectedVersion int, actorID *string) (*domain.Appointment, error) {
	if _, err := domain.ParseAppointmentStatus(string(to)); err != nil {
		return nil, err
	}

	var (
		result  *domain.Appointment
		changed bool
	)
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.lockAppointment(txCtx, id)
		if err != nil {
			return err
		}
		if current.Status == domain.AppointmentStatusCanceled && to == domain.AppointmentStatusCanceled {
			result = current
			return nil
		}
		if current.Version != expectedVersion {
			return &domain.ConflictError{CurrentVersion: current.Version}
		}
		if !current.Status.CanTransitionTo(to) {
			return domain.ErrInvalidTransition
		}
		next, err := s.transition(txCtx, current, to, actorID, nil)
		if err != nil {
			return err
		}
		result, changed = next, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, eventFor(to), result, actorID)
	}
	return result, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if errors.Is(err, domain.ErrInvalidID) {
		return nil, domain.ErrNotFound
	}
	return appt, err
}

func (s *AppointmentService) ListAuditLog(ctx context.Context, appointmentID string) ([]domain.AuditLogEntry, error) {
	if _, err := s.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.audit.ListByAppointment(ctx, appointmentID)
}

// transition applies a status change to a locked row and records it.
func (s *AppointmentService) transition(
	ctx context.Context,
	current *domain.Appointment,
	to domain.AppointmentStatus,
	actorID, reason *string,
) (*domain.Appointment, error) {
	if !current.Status.CanTransitionTo(to) {
		return nil, domain.ErrInvalidTransition
	}
	now := s.clock.Now()
	next := *current
	next.Status = to
	next.Version = current.Version + 1
	next.UpdatedAt = now
	if to == domain.AppointmentStatusCanceled {
		next.DeletedAt = &now
		next.CancellationReason = reason
	}

	if err := s.save(ctx, &next, current.Version); err != nil {
		return nil, err
	}
	if err := s.appendAudit(ctx, domain.AuditActionFor(to), actorID, current, &next, now); err != nil {
		return nil, err
	}
	return &next, nil
}

// save performs the version-checked write. A miss means someone else bumped the version.
func (s *AppointmentService) save(ctx context.Context, next *domain.Appointment, expectedVersion int) error {
	updated, err := s.appointments.Update(ctx, next, expectedVersion)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}
	stored, err := s.appointments.GetByID(ctx, next.ID)
	if err != nil {
		return err
	}
	return &domain.ConflictError{CurrentVersion: stored.Version}
}

func (s *AppointmentService) lockAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	appt, err := s.appointments.GetForUpdate(ctx, id)
	if errors.Is(err, domain.ErrInvalidID) {
		return nil, domain.ErrNotFound
	}
	return appt, err
}

func (s *AppointmentService) appendAudit(
	ctx context.Context,
	action domain.AuditAction,
	actorID *string,
	before, after *domain.Appointment,
	at time.Time,
) error {
	entry := &domain.AuditLogEntry{
		ID:            uuid.NewString(),
		AppointmentID: after.ID,
		ActorID:       actorID,
		Action:        action,
		Timestamp:     at,
	}
	var err error
	if before != nil {
		if entry.BeforeSnapshot, err = json.Marshal(before); err != nil {
			return fmt.Errorf("marshal before snapshot: %w", err)
		}
	}
	if entry.AfterSnapshot, err = json.Marshal(after); err != nil {
		return fmt.Errorf("marshal after snapshot: %w", err)
	}
	return s.audit.Append(ctx, entry)
}

// rescheduleWindow resolves the patched window. rescheduled is false when the slot is unchanged.
func rescheduleWindow(current *domain.Appointment, patch Patch) (domain.Window, bool, error) {
	if patch.SlotStart == nil && patch.SlotEnd == nil {
		return current.Window(), false, nil
	}
	start, end := current.SlotStart, current.SlotEnd
	if patch.SlotStart != nil {
		start = *patch.SlotStart
	}
	if patch.SlotEnd != nil {
		end = *patch.SlotEnd
	}
	window, err := domain.NewWindow(start, end)
	if err != nil {
		return domain.Window{}, false, err
	}
	if window.Equal(current.Window()) {
		return window, false, nil
	}
	return window, true, nil
}

func eventFor(status domain.AppointmentStatus) kafka.EventType {
	switch status {
	case domain.AppointmentStatusCanceled:
		return kafka.EventAppointmentCanceled
	case domain.AppointmentStatusCompleted:
		return kafka.EventAppointmentCompleted
	case domain.AppointmentStatusNoShow:
		return kafka.EventAppointmentNoShow
	default:
		return kafka.EventAppointmentUpdated
	}
}

func (s *AppointmentService) publish(ctx context.Context, eventType kafka.EventType, a *domain.Appointment, actorID *string) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		BusinessID:    a.BusinessID,
		ServiceID:     a.ServiceID,
		AppointmentID: a.ID,
		Status:        string(a.Status),
		Version:       a.Version,
		SlotStart:     a.SlotStart,
		SlotEnd:       a.SlotEnd,
		OccurredAt:    a.UpdatedAt,
	}
	if a.OriginReservationID != nil {
		event.ReservationID = *a.OriginReservationID
	}
	if a.GuestEmail != nil {
		event.GuestEmail = *a.GuestEmail
	}
	if actorID != nil {
		event.ActorID = *actorID
	}
	if err := s.producer.Publish(ctx, s.topic, event.Key(), event); err != nil {
		s.logger.Warn("failed to publish appointment event",
			zap.String("appointment_id", a.ID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

var _ AppointmentUseCase = (*AppointmentService)(nil)
