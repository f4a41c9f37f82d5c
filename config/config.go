package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. BOOKING_DATABASE_HOST.
const EnvPrefix = "BOOKING"

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"shutdown_timeout"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	// URL wins over the individual fields when set.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns" envconfig:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig is optional; without an address sweeper stats stay in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig is optional; without brokers no booking events are published.
type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic" envconfig:"booking_events_topic"`
	GroupID            string   `yaml:"group_id" envconfig:"group_id"`
}

type BookingConfig struct {
	DefaultHoldTTL time.Duration `yaml:"default_hold_ttl" envconfig:"default_hold_ttl"`
	MinHoldTTL     time.Duration `yaml:"min_hold_ttl" envconfig:"min_hold_ttl"`
	MaxHoldTTL     time.Duration `yaml:"max_hold_ttl" envconfig:"max_hold_ttl"`
}

type WorkerConfig struct {
	SweepInterval    time.Duration `yaml:"sweep_interval" envconfig:"sweep_interval"`
	StaleAfter       time.Duration `yaml:"stale_after" envconfig:"stale_after"`
	BacklogThreshold int64         `yaml:"backlog_threshold" envconfig:"backlog_threshold"`
}

// LoadConfig reads path (a missing file is allowed), a .env file if present, and then
// BOOKING_* environment variables, which take precedence.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 20
	}
	if c.Kafka.BookingEventsTopic == "" {
		c.Kafka.BookingEventsTopic = "booking-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "booking-notifications"
	}
	if c.Booking.DefaultHoldTTL == 0 {
		c.Booking.DefaultHoldTTL = 15 * time.Minute
	}
	if c.Booking.MinHoldTTL == 0 {
		c.Booking.MinHoldTTL = 3 * time.Second
	}
	if c.Booking.MaxHoldTTL == 0 {
		c.Booking.MaxHoldTTL = 60 * time.Minute
	}
	if c.Worker.SweepInterval == 0 {
		c.Worker.SweepInterval = time.Minute
	}
	if c.Worker.StaleAfter == 0 {
		c.Worker.StaleAfter = 5 * c.Worker.SweepInterval
	}
	if c.Worker.BacklogThreshold == 0 {
		c.Worker.BacklogThreshold = 1000
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" && (c.Database.User == "" || c.Database.Name == "") {
		errs = append(errs, errors.New("database: url or user and name are required"))
	}
	if c.Database.MaxConns < 1 {
		errs = append(errs, errors.New("database: max_conns must be positive"))
	}
	b := c.Booking
	if b.MinHoldTTL <= 0 || b.MaxHoldTTL < b.MinHoldTTL {
		errs = append(errs, fmt.Errorf("booking: hold ttl bounds [%s, %s] are invalid", b.MinHoldTTL, b.MaxHoldTTL))
	}
	if b.DefaultHoldTTL < b.MinHoldTTL || b.DefaultHoldTTL > b.MaxHoldTTL {
		errs = append(errs, fmt.Errorf("booking: default_hold_ttl %s is outside [%s, %s]", b.DefaultHoldTTL, b.MinHoldTTL, b.MaxHoldTTL))
	}
	if c.Worker.SweepInterval <= 0 {
		errs = append(errs, errors.New("worker: sweep_interval must be positive"))
	}
	if c.Worker.StaleAfter < c.Worker.SweepInterval {
		errs = append(errs, errors.New("worker: stale_after must not be shorter than sweep_interval"))
	}
	return errors.Join(errs...)
}
