// Package cleanup runs the periodic removal of expired reservations and reports its health.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/internal/clock"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"go.uber.org/zap"
)

const (
	DefaultInterval         = time.Minute
	DefaultStaleAfter       = 5 * time.Minute
	DefaultBacklogThreshold = 1000
)

type Cleaner interface {
	CleanupExpiredReservations(ctx context.Context) (reservation.CleanupResult, error)
}

// StatsStore keeps run statistics where every app and worker instance can read them.
type StatsStore interface {
	RecordSuccess(ctx context.Context, ranAt time.Time, removed int64) error
	RecordFailure(ctx context.Context, ranAt time.Time, cause string) error
	Load(ctx context.Context) (Stats, error)
}

type Stats struct {
	LastRunAt           time.Time `json:"last_run_at"`
	LastSuccessAt       time.Time `json:"last_success_at"`
	LastRemoved         int64     `json:"last_removed"`
	TotalRemoved        int64     `json:"total_removed"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
}

type Health struct {
	Healthy             bool       `json:"healthy"`
	CheckedAt           time.Time  `json:"checked_at"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastRemoved         int64      `json:"last_removed"`
	TotalRemoved        int64      `json:"total_removed"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	Reasons             []string   `json:"reasons,omitempty"`
}

type Sweeper struct {
	cleaner          Cleaner
	store            StatsStore
	clock            clock.Clock
	logger           *zap.Logger
	interval         time.Duration
	staleAfter       time.Duration
	backlogThreshold int64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithHealthThresholds sets how old the last success may be and how many rows a single run
// may remove before the sweeper reports itself unhealthy.
func WithHealthThresholds(staleAfter time.Duration, backlogThreshold int64) Option {
	return func(s *Sweeper) {
		if staleAfter > 0 {
			s.staleAfter = staleAfter
		}
		if backlogThreshold > 0 {
			s.backlogThreshold = backlogThreshold
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSweeper(cleaner Cleaner, store StatsStore, clk clock.Clock, opts ...Option) *Sweeper {
	if store == nil {
		store = NewMemoryStats()
	}
	s := &Sweeper{
		cleaner:          cleaner,
		store:            store,
		clock:            clk,
		logger:           zap.NewNop(),
		interval:         DefaultInterval,
		staleAfter:       DefaultStaleAfter,
		backlogThreshold: DefaultBacklogThreshold,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs a single sweep and records the outcome. A failing stats store is logged
// but does not turn a successful sweep into an error.
func (s *Sweeper) RunOnce(ctx context.Context) (reservation.CleanupResult, error) {
	result, err := s.cleaner.CleanupExpiredReservations(ctx)
	if err != nil {
		ranAt := result.RanAt
		if ranAt.IsZero() {
			ranAt = s.clock.Now()
		}
		s.logger.Error("cleanup of expired reservations failed", zap.Error(err))
		if serr := s.store.RecordFailure(ctx, ranAt, err.Error()); serr != nil {
			s.logger.Warn("failed to record cleanup failure", zap.Error(serr))
		}
		return result, fmt.Errorf("cleanup expired reservations: %w", err)
	}

	if result.RemovedCount > 0 {
		s.logger.Info("expired reservations removed", zap.Int64("removed", result.RemovedCount))
	} else {
		s.logger.Debug("no expired reservations")
	}
	if serr := s.store.RecordSuccess(ctx, result.RanAt, result.RemovedCount); serr != nil {
		s.logger.Warn("failed to record cleanup run", zap.Error(serr))
	}
	return result, nil
}

// Start runs a sweep immediately and then on every tick until Stop or ctx cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("starting reservation sweeper", zap.Duration("interval", s.interval))
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping reservation sweeper")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	_, _ = s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			s.logger.Info("reservation sweeper cancelled")
			return
		}
	}
}

// Health loads the shared stats and evaluates them against the configured thresholds.
func (s *Sweeper) Health(ctx context.Context) (Health, error) {
	stats, err := s.store.Load(ctx)
	if err != nil {
		return Health{}, fmt.Errorf("load sweeper stats: %w", err)
	}
	return Evaluate(stats, s.clock.Now(), s.staleAfter, s.backlogThreshold), nil
}

// Evaluate is unhealthy when no run has succeeded within staleAfter, when the latest run failed,
// or when the latest run removed more than backlogThreshold rows.
func Evaluate(stats Stats, now time.Time, staleAfter time.Duration, backlogThreshold int64) Health {
	h := Health{
		Healthy:             true,
		CheckedAt:           now,
		LastRemoved:         stats.LastRemoved,
		TotalRemoved:        stats.TotalRemoved,
		ConsecutiveFailures: stats.ConsecutiveFailures,
		LastError:           stats.LastError,
	}
	if !stats.LastRunAt.IsZero() {
		t := stats.LastRunAt
		h.LastRunAt = &t
	}
	if !stats.LastSuccessAt.IsZero() {
		t := stats.LastSuccessAt
		h.LastSuccessAt = &t
	}

	switch {
	case stats.LastSuccessAt.IsZero():
		h.Reasons = append(h.Reasons, "no successful cleanup run recorded")
	case now.Sub(stats.LastSuccessAt) > staleAfter:
		h.Reasons = append(h.Reasons, fmt.Sprintf("last successful cleanup was %s ago", now.Sub(stats.LastSuccessAt).Round(time.Second)))
	}
	if stats.ConsecutiveFailures > 0 {
		h.Reasons = append(h.Reasons, fmt.Sprintf("last cleanup failed: %s", stats.LastError))
	}
	if backlogThreshold > 0 && stats.LastRemoved > backlogThreshold {
		h.Reasons = append(h.Reasons, fmt.Sprintf("last cleanup removed %d reservations (threshold %d)", stats.LastRemoved, backlogThreshold))
	}
	h.Healthy = len(h.Reasons) == 0
	return h
}
