package repository

import (
	"context"
	"fmt"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AppointmentRepository interface {
	// Create inserts a unless its idempotency key exists; created is false on a key conflict.
	Create(ctx context.Context, a *domain.Appointment) (created bool, err error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Appointment, error)
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Appointment, error)
	GetByCancellationTokenForUpdate(ctx context.Context, token string) (*domain.Appointment, error)
	// Update writes a only if the stored version still equals expectedVersion.
	Update(ctx context.Context, a *domain.Appointment, expectedVersion int) (updated bool, err error)
}

type PGAppointmentRepository struct {
	db *pgxpool.Pool
}

func NewAppointmentRepository(db *pgxpool.Pool) AppointmentRepository {
	return &PGAppointmentRepository{db: db}
}

const appointmentColumns = `id, business_id, service_id, customer_id, guest_name, guest_email, guest_phone, notes,
	slot_start, slot_end, status, idempotency_key, origin_reservation_id, cancellation_token,
	cancellation_reason, version, deleted_at, created_at, updated_at`

func (r *PGAppointmentRepository) Create(ctx context.Context, a *domain.Appointment) (bool, error) {
	const stmt = `
INSERT INTO appointments (` + appointmentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt,
		a.ID, a.BusinessID, a.ServiceID, a.CustomerID, a.GuestName, a.GuestEmail, a.GuestPhone, a.Notes,
		a.SlotStart, a.SlotEnd, string(a.Status), a.IdempotencyKey, a.OriginReservationID, a.CancellationToken,
		a.CancellationReason, a.Version, a.DeletedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("create appointment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGAppointmentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Appointment, error) {
	a, err := r.scanOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE idempotency_key = $1`, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find appointment by idempotency key: %w", err)
	}
	return a, nil
}

func (r *PGAppointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
}

func (r *PGAppointmentRepository) GetForUpdate(ctx context.Context, id string) (*domain.Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGAppointmentRepository) GetByCancellationTokenForUpdate(ctx context.Context, token string) (*domain.Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE cancellation_token = $1 FOR UPDATE`, token)
}

func (r *PGAppointmentRepository) Update(ctx context.Context, a *domain.Appointment, expectedVersion int) (bool, error) {
	const stmt = `
UPDATE appointments
SET customer_id = $3, guest_name = $4, guest_email = $5, guest_phone = $6, notes = $7,
	slot_start = $8, slot_end = $9, status = $10, cancellation_reason = $11,
	version = $12, deleted_at = $13, updated_at = $14
WHERE id = $1 AND version = $2`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt,
		a.ID, expectedVersion,
		a.CustomerID, a.GuestName, a.GuestEmail, a.GuestPhone, a.Notes,
		a.SlotStart, a.SlotEnd, string(a.Status), a.CancellationReason,
		a.Version, a.DeletedAt, a.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("update appointment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGAppointmentRepository) get(ctx context.Context, query, arg string) (*domain.Appointment, error) {
	a, err := r.scanOne(ctx, query, arg)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *PGAppointmentRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Appointment, error) {
	return scanAppointment(conn(ctx, r.db).QueryRow(ctx, query, args...))
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var (
		a      domain.Appointment
		status string
	)
	if err := row.Scan(
		&a.ID, &a.BusinessID, &a.ServiceID, &a.CustomerID, &a.GuestName, &a.GuestEmail, &a.GuestPhone, &a.Notes,
		&a.SlotStart, &a.SlotEnd, &status, &a.IdempotencyKey, &a.OriginReservationID, &a.CancellationToken,
		&a.CancellationReason, &a.Version, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = domain.AppointmentStatus(status)
	return &a, nil
}

var _ AppointmentRepository = (*PGAppointmentRepository)(nil)
