package repository

import (
	"context"
	"fmt"

	"github.com/ZondaOne/rhivo-app-sub003/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository is append-only: there is deliberately no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]domain.AuditLogEntry, error)
}

type PGAuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) AuditRepository {
	return &PGAuditRepository{db: db}
}

func (r *PGAuditRepository) Append(ctx context.Context, e *domain.AuditLogEntry) error {
	const stmt = `
INSERT INTO audit_logs (id, appointment_id, actor_id, action, before_snapshot, after_snapshot, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var before []byte
	if len(e.BeforeSnapshot) > 0 {
		before = []byte(e.BeforeSnapshot)
	}
	_, err := conn(ctx, r.db).Exec(ctx, stmt,
		e.ID, e.AppointmentID, e.ActorID, string(e.Action), before, []byte(e.AfterSnapshot), e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func (r *PGAuditRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]domain.AuditLogEntry, error) {
	const query = `
SELECT id, appointment_id, actor_id, action, before_snapshot, after_snapshot, created_at
FROM audit_logs
WHERE appointment_id = $1
ORDER BY created_at, seq`

	rows, err := conn(ctx, r.db).Query(ctx, query, appointmentID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditLogEntry, 0)
	for rows.Next() {
		var (
			e             domain.AuditLogEntry
			action        string
			before, after []byte
		)
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.ActorID, &action, &before, &after, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Action = domain.AuditAction(action)
		e.BeforeSnapshot = before
		e.AfterSnapshot = after
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}

var _ AuditRepository = (*PGAuditRepository)(nil)
