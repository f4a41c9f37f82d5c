package cleanup

import (
	"context"
	"sync"
	"time"
)

// MemoryStats is a process-local StatsStore, used when Redis is not configured.
type MemoryStats struct {
	mu    sync.Mutex
	stats Stats
}

func NewMemoryStats() *MemoryStats {
	return &MemoryStats{}
}

func (m *MemoryStats) RecordSuccess(_ context.Context, ranAt time.Time, removed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.LastRunAt = ranAt
	m.stats.LastSuccessAt = ranAt
	m.stats.LastRemoved = removed
	m.stats.TotalRemoved += removed
	m.stats.LastError = ""
	m.stats.ConsecutiveFailures = 0
	return nil
}

func (m *MemoryStats) RecordFailure(_ context.Context, ranAt time.Time, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.LastRunAt = ranAt
	m.stats.LastError = cause
	m.stats.ConsecutiveFailures++
	return nil
}

func (m *MemoryStats) Load(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, nil
}
