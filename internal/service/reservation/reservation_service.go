package reservation

import (
	"context"
	"errors"
	"fmt"
	"math"
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

const (
	DefaultTTL = 15 * time.Minute
	MinTTL     = 3 * time.Second
	MaxTTL     = 60 * time.Minute
)

type ReservationUseCase interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error)
	ValidateReservation(ctx context.Context, id string) (domain.ReservationValidation, error)
	GetAvailableCapacity(ctx context.Context, businessID, serviceID string, window domain.Window) (int, error)
	CleanupExpiredReservations(ctx context.Context) (CleanupResult, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// CommittedKeys finds the appointment a hold's idempotency key was committed into.
type CommittedKeys interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Appointment, error)
}

type CreateReservationInput struct {
	BusinessID     string    `json:"business_id"`
	ServiceID      string    `json:"service_id"`
	SlotStart      time.Time `json:"slot_start"`
	SlotEnd        time.Time `json:"slot_end"`
	IdempotencyKey string    `json:"idempotency_key"`
	// TTLMinutes may be fractional; nil selects the default.
	TTLMinutes *float64 `json:"ttl_minutes,omitempty"`
}

type CleanupResult struct {
	RemovedCount int64     `json:"removed_count"`
	RanAt        time.Time `json:"ran_at"`
}

type ReservationService struct {
	tx           repository.Transactor
	reservations repository.ReservationRepository
	guard        *capacity.Guard
	clock        clock.Clock
	logger       *zap.Logger
	committed    CommittedKeys
	producer     Producer
	topic        string
	defaultTTL   time.Duration
	minTTL       time.Duration
	maxTTL       time.Duration
}

type ReservationServiceOption func(*ReservationService)

func WithLogger(logger *zap.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher enables reservation.created events on topic.
func WithPublisher(producer Producer, topic string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.producer = producer
		s.topic = topic
	}
}

// WithCommittedKeys rejects reserve retries whose key already became an appointment,
// instead of placing a second hold that could never be committed.
func WithCommittedKeys(committed CommittedKeys) ReservationServiceOption {
	return func(s *ReservationService) {
		s.committed = committed
	}
}

// WithTTL overrides the hold TTL default and clamp bounds. Zero values keep the current setting.
func WithTTL(def, min, max time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if def > 0 {
			s.defaultTTL = def
		}
		if min > 0 {
			s.minTTL = min
		}
		if max > 0 {
			s.maxTTL = max
		}
	}
}

func NewReservationService(
	tx repository.Transactor,
	reservations repository.ReservationRepository,
	guard *capacity.Guard,
	clk clock.Clock,
	opts ...ReservationServiceOption,
) *ReservationService {
	s := &ReservationService{
		tx:           tx,
		reservations: reservations,
		guard:        guard,
		clock:        clk,
		logger:       zap.NewNop(),
		defaultTTL:   DefaultTTL,
		minTTL:       MinTTL,
		maxTTL:       MaxTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReservation places a hold on one unit of capacity.
//
// A known idempotency key returns the stored reservation as-is: the new input is not
// validated or compared, and no capacity is consumed. Keys are global, not per business.
// A key already committed into an appointment is rejected when WithCommittedKeys is set.
func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error) {
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return nil, domain.Validationf("idempotency_key is required")
	}

	existing, err := s.reservations.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if s.committed != nil {
		appt, err := s.committed.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if appt != nil {
			return nil, domain.Validationf("idempotency key %q was already committed as appointment %s", key, appt.ID)
		}
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

	candidate := &domain.Reservation{
		ID:             uuid.NewString(),
		BusinessID:     input.BusinessID,
		ServiceID:      input.ServiceID,
		SlotStart:      window.Start,
		SlotEnd:        window.End,
		IdempotencyKey: key,
		ExpiresAt:      now.Add(s.ttl(input.TTLMinutes)),
		CreatedAt:      now,
	}

	var (
		result  *domain.Reservation
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
			ok, err := s.reservations.Create(txCtx, candidate)
			if err != nil {
				return err
			}
			if ok {
				result, created = candidate, true
				return nil
			}
			// A concurrent request with the same key won the insert.
			winner, err := s.reservations.FindByIdempotencyKey(txCtx, key)
			if err != nil {
				return err
			}
			if winner == nil {
				return fmt.Errorf("reservation with idempotency key %q conflicted but was not found", key)
			}
			result = winner
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrSlotUnavailable) {
			s.logger.Info("slot unavailable",
				zap.String("business_id", input.BusinessID),
				zap.String("service_id", input.ServiceID),
				zap.Time("slot_start", window.Start))
		}
		return nil, err
	}

	if created {
		s.publish(ctx, result)
	}
	return result, nil
}

func (s *ReservationService) ValidateReservation(ctx context.Context, id string) (domain.ReservationValidation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return domain.ReservationValidation{Valid: false, Reason: domain.InvalidReasonNotFound}, nil
		}
		return domain.ReservationValidation{}, err
	}
	if res.IsExpired(s.clock.Now()) {
		return domain.ReservationValidation{Valid: false, Reason: domain.InvalidReasonExpired}, nil
	}
	return domain.ReservationValidation{Valid: true}, nil
}

// GetAvailableCapacity counts remaining units for window. Expired holds are ignored even
// before the sweeper removes them.
func (s *ReservationService) GetAvailableCapacity(ctx context.Context, businessID, serviceID string, window domain.Window) (int, error) {
	if _, err := domain.NewWindow(window.Start, window.End); err != nil {
		return 0, err
	}
	return s.guard.Available(ctx, capacity.Claim{
		BusinessID: businessID,
		ServiceID:  serviceID,
		Window:     window,
		Now:        s.clock.Now(),
	})
}

// CleanupExpiredReservations deletes every hold whose expires_at has passed.
// It is safe to run concurrently with itself and with request traffic.
func (s *ReservationService) CleanupExpiredReservations(ctx context.Context) (CleanupResult, error) {
	now := s.clock.Now()
	removed, err := s.reservations.DeleteExpired(ctx, now)
	if err != nil {
		return CleanupResult{RanAt: now}, err
	}
	return CleanupResult{RemovedCount: removed, RanAt: now}, nil
}

// ttl clamps silently into [minTTL, maxTTL]; out-of-range input is not an error.
func (s *ReservationService) ttl(minutes *float64) time.Duration {
	if minutes == nil || math.IsNaN(*minutes) {
		return s.defaultTTL
	}
	m := *minutes
	switch {
	case m >= s.maxTTL.Minutes():
		return s.maxTTL
	case m <= s.minTTL.Minutes():
		return s.minTTL
	}
	return time.Duration(m * float64(time.Minute))
}

func (s *ReservationService) publish(ctx context.Context, r *domain.Reservation) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          kafka.EventReservationCreated,
		BusinessID:    r.BusinessID,
		ServiceID:     r.ServiceID,
		ReservationID: r.ID,
		SlotStart:     r.SlotStart,
		SlotEnd:       r.SlotEnd,
		ExpiresAt:     r.ExpiresAt,
		OccurredAt:    r.CreatedAt,
	}
	if err := s.producer.Publish(ctx, s.topic, event.Key(), event); err != nil {
		s.logger.Warn("failed to publish reservation event", zap.String("reservation_id", r.ID), zap.Error(err))
	}
}

var _ ReservationUseCase = (*ReservationService)(nil)
