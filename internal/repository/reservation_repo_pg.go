package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository interface {
	// Create inserts r unless its idempotency key exists; created is false on a key conflict.
	Create(ctx context.Context, r *domain.Reservation) (created bool, err error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error)
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Reservation, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

const reservationColumns = `id, business_id, service_id, slot_start, slot_end, idempotency_key, expires_at, created_at`

func (r *PGReservationRepository) Create(ctx context.Context, res *domain.Reservation) (bool, error) {
	const stmt = `
INSERT INTO reservations (` + reservationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt,
		res.ID, res.BusinessID, res.ServiceID, res.SlotStart, res.SlotEnd,
		res.IdempotencyKey, res.ExpiresAt, res.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("create reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGReservationRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error) {
	res, err := r.scanOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE idempotency_key = $1`, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find reservation by idempotency key: %w", err)
	}
	return res, nil
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *PGReservationRepository) GetForUpdate(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGReservationRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteExpired removes every expired hold in one statement, so overlapping sweeps
// can only ever delete a row once.
func (r *PGReservationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGReservationRepository) get(ctx context.Context, query, id string) (*domain.Reservation, error) {
	res, err := r.scanOne(ctx, query, id)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *PGReservationRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Reservation, error) {
	return scanReservation(conn(ctx, r.db).QueryRow(ctx, query, args...))
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := row.Scan(&res.ID, &res.BusinessID, &res.ServiceID, &res.SlotStart, &res.SlotEnd,
		&res.IdempotencyKey, &res.ExpiresAt, &res.CreatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
