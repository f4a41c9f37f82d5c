package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentStatus_CanTransitionTo(t *testing.T) {
	all := []AppointmentStatus{
		AppointmentStatusConfirmed,
		AppointmentStatusCompleted,
		AppointmentStatusNoShow,
		AppointmentStatusCanceled,
	}

	for _, from := range all {
		for _, to := range all {
			want := from == AppointmentStatusConfirmed && to != AppointmentStatusConfirmed
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestParseAppointmentStatus(t *testing.T) {
	s, err := ParseAppointmentStatus(" No_Show ")
	require.NoError(t, err)
	assert.Equal(t, AppointmentStatusNoShow, s)

	_, err = ParseAppointmentStatus("pending")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestContact_Validate(t *testing.T) {
	str := func(s string) *string { return &s }

	assert.NoError(t, Contact{Email: str("guest@example.com")}.Validate())
	assert.NoError(t, Contact{Phone: str("+390612345678")}.Validate())
	assert.NoError(t, Contact{CustomerID: str("cust-1")}.Validate())

	err := Contact{Name: str("Ada")}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))

	err = Contact{Email: str("not-an-email")}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestConflictError(t *testing.T) {
	var err error = &ConflictError{CurrentVersion: 3}

	assert.True(t, errors.Is(err, ErrConflict))
	v, ok := CurrentVersion(err)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = CurrentVersion(ErrNotFound)
	assert.False(t, ok)
}

func TestAuditActionFor(t *testing.T) {
	assert.Equal(t, AuditActionCanceled, AuditActionFor(AppointmentStatusCanceled))
	assert.Equal(t, AuditActionCompleted, AuditActionFor(AppointmentStatusCompleted))
	assert.Equal(t, AuditActionNoShow, AuditActionFor(AppointmentStatusNoShow))
	assert.Equal(t, AuditActionUpdated, AuditActionFor(AppointmentStatusConfirmed))
}
