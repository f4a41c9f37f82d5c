package domain

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditActionCreated   AuditAction = "created"
	AuditActionUpdated   AuditAction = "updated"
	AuditActionCanceled  AuditAction = "canceled"
	AuditActionCompleted AuditAction = "completed"
	AuditActionNoShow    AuditAction = "no_show"
)

// AuditActionFor maps a target status to the audit action recorded for the transition.
func AuditActionFor(status AppointmentStatus) AuditAction {
	switch status {
	case AppointmentStatusCanceled:
		return AuditActionCanceled
	case AppointmentStatusCompleted:
		return AuditActionCompleted
	case AppointmentStatusNoShow:
		return AuditActionNoShow
	default:
		return AuditActionUpdated
	}
}

// AuditLogEntry is append-only; one row per successful appointment mutation.
type AuditLogEntry struct {
	ID             string          `json:"id"`
	AppointmentID  string          `json:"appointment_id"`
	ActorID        *string         `json:"actor_id,omitempty"`
	Action         AuditAction     `json:"action"`
	BeforeSnapshot json.RawMessage `json:"before_snapshot,omitempty"`
	AfterSnapshot  json.RawMessage `json:"after_snapshot"`
	Timestamp      time.Time       `json:"timestamp"`
}
