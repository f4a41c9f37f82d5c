package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/config"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/cleanup"
	"github.com/redis/go-redis/v9"
)

const (
	fieldLastRunAt           = "last_run_at"
	fieldLastSuccessAt       = "last_success_at"
	fieldLastRemoved         = "last_removed"
	fieldTotalRemoved        = "total_removed"
	fieldLastError           = "last_error"
	fieldConsecutiveFailures = "consecutive_failures"
)

// RedisSweepStats shares sweeper run statistics between the app and worker processes
// as one hash.
type RedisSweepStats struct {
	client *redis.Client
	key    string
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisSweepStats(client *redis.Client, key string) *RedisSweepStats {
	if key == "" {
		key = sweepStatsKey()
	}
	return &RedisSweepStats{client: client, key: key}
}

func (c *RedisSweepStats) RecordSuccess(ctx context.Context, ranAt time.Time, removed int64) error {
	stamp := ranAt.UTC().Format(time.RFC3339Nano)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key,
			fieldLastRunAt, stamp,
			fieldLastSuccessAt, stamp,
			fieldLastRemoved, removed,
			fieldLastError, "",
			fieldConsecutiveFailures, 0,
		)
		pipe.HIncrBy(ctx, c.key, fieldTotalRemoved, removed)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record sweep success: %w", err)
	}
	return nil
}

func (c *RedisSweepStats) RecordFailure(ctx context.Context, ranAt time.Time, cause string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key,
			fieldLastRunAt, ranAt.UTC().Format(time.RFC3339Nano),
			fieldLastError, cause,
		)
		pipe.HIncrBy(ctx, c.key, fieldConsecutiveFailures, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record sweep failure: %w", err)
	}
	return nil
}

func (c *RedisSweepStats) Load(ctx context.Context) (cleanup.Stats, error) {
	values, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return cleanup.Stats{}, fmt.Errorf("load sweep stats: %w", err)
	}
	return parseStats(values)
}

func (c *RedisSweepStats) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func parseStats(values map[string]string) (cleanup.Stats, error) {
	var (
		stats cleanup.Stats
		err   error
	)
	if stats.LastRunAt, err = parseTime(values[fieldLastRunAt]); err != nil {
		return stats, err
	}
	if stats.LastSuccessAt, err = parseTime(values[fieldLastSuccessAt]); err != nil {
		return stats, err
	}
	if stats.LastRemoved, err = parseInt(values[fieldLastRemoved]); err != nil {
		return stats, err
	}
	if stats.TotalRemoved, err = parseInt(values[fieldTotalRemoved]); err != nil {
		return stats, err
	}
	if stats.ConsecutiveFailures, err = parseInt(values[fieldConsecutiveFailures]); err != nil {
		return stats, err
	}
	stats.LastError = values[fieldLastError]
	return stats, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sweep stats time %q: %w", raw, err)
	}
	return t, nil
}

func parseInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sweep stats counter %q: %w", raw, err)
	}
	return n, nil
}

func sweepStatsKey() string {
	return "booking:sweeper:stats"
}

var _ cleanup.StatsStore = (*RedisSweepStats)(nil)
