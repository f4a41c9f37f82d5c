package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_YAMLAndDefaults(t *testing.T) {
	path := writeConfig(t, `
env: production
http:
  address: ":8081"
database:
  host: db
  user: booking
  password: secret
  name: booking
redis:
  addr: "redis:6379"
kafka:
  brokers: ["kafka:9092"]
booking:
  default_hold_ttl: 10m
worker:
  sweep_interval: 30s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, ":8081", cfg.HTTP.Address)
	assert.Equal(t, ":9090", cfg.GRPC.Address)
	assert.Equal(t, "host=db port=5432 user=booking password=secret dbname=booking sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "booking-events", cfg.Kafka.BookingEventsTopic)
	assert.Equal(t, 10*time.Minute, cfg.Booking.DefaultHoldTTL)
	assert.Equal(t, 3*time.Second, cfg.Booking.MinHoldTTL)
	assert.Equal(t, time.Hour, cfg.Booking.MaxHoldTTL)
	assert.Equal(t, 30*time.Second, cfg.Worker.SweepInterval)
	assert.Equal(t, 150*time.Second, cfg.Worker.StaleAfter)
	assert.Equal(t, int64(1000), cfg.Worker.BacklogThreshold)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  user: booking
  name: booking
`)
	t.Setenv("BOOKING_DATABASE_URL", "postgres://u:p@pg:5432/booking")
	t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BOOKING_BOOKING_MAX_HOLD_TTL", "30m")
	t.Setenv("BOOKING_WORKER_BACKLOG_THRESHOLD", "50")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@pg:5432/booking", cfg.Database.DSN())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.Booking.MaxHoldTTL)
	assert.Equal(t, int64(50), cfg.Worker.BacklogThreshold)
}

func TestLoadConfig_MissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("BOOKING_DATABASE_URL", "postgres://u:p@pg:5432/booking")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"no database", "env: test\n"},
		{"inverted ttl bounds", "database: {url: x}\nbooking: {min_hold_ttl: 10m, max_hold_ttl: 1m}\n"},
		{"default outside bounds", "database: {url: x}\nbooking: {default_hold_ttl: 2h}\n"},
		{"stale shorter than interval", "database: {url: x}\nworker: {sweep_interval: 1m, stale_after: 10s}\n"},
		{"malformed yaml", "database: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}
