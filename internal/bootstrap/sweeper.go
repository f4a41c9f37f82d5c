package bootstrap

import (
	"github.com/ZondaOne/rhivo-app-sub003/config"
	"github.com/ZondaOne/rhivo-app-sub003/internal/cache"
	"github.com/ZondaOne/rhivo-app-sub003/internal/clock"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/cleanup"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SweeperSetup is the sweeper a process reports health from. Local is true when stats live in
// process memory: only this process's own runs are then visible, so it must run the loop itself.
type SweeperSetup struct {
	Sweeper *cleanup.Sweeper
	Redis   *redis.Client
	Local   bool
}

// Close releases the Redis client, if any.
func (s SweeperSetup) Close() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

// NewSweeper wires the sweeper to shared Redis stats when configured and to in-memory stats otherwise.
func NewSweeper(cfg *config.Config, cleaner cleanup.Cleaner, clk clock.Clock, logger *zap.Logger) SweeperSetup {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []cleanup.Option{
		cleanup.WithLogger(logger),
		cleanup.WithInterval(cfg.Worker.SweepInterval),
		cleanup.WithHealthThresholds(cfg.Worker.StaleAfter, cfg.Worker.BacklogThreshold),
	}

	if cfg.Redis.Addr == "" {
		return SweeperSetup{
			Sweeper: cleanup.NewSweeper(cleaner, cleanup.NewMemoryStats(), clk, opts...),
			Local:   true,
		}
	}

	client := cache.NewRedisClient(cfg.Redis)
	return SweeperSetup{
		Sweeper: cleanup.NewSweeper(cleaner, cache.NewRedisSweepStats(client, ""), clk, opts...),
		Redis:   client,
	}
}
