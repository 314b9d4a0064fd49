// Package config loads and validates application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "LINKWATCH_"

// Config is the root application configuration.
type Config struct {
	Log           LogConfig           `koanf:"log"`
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Scheduler     SchedulerConfig     `koanf:"scheduler"`
	Github        GithubConfig        `koanf:"github"`
	StackOverflow StackOverflowConfig `koanf:"stackoverflow"`
	Kafka         KafkaConfig         `koanf:"kafka"`
	Redis         RedisConfig         `koanf:"redis"`
	Relay         RelayConfig         `koanf:"relay"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// ServerConfig contains the operational HTTP server configuration
// (healthz/readyz/metrics only).
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port string `koanf:"port" validate:"required"`
}

// DatabaseConfig contains PostgreSQL configuration.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"required"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"min=1"`
}

// SchedulerConfig controls the change-detection tick.
type SchedulerConfig struct {
	// TickInterval is how often the claim/enrich/process cycle runs.
	TickInterval time.Duration `koanf:"tick_interval" validate:"required"`
	// CheckInterval is how stale a link must be before it is claimed.
	CheckInterval time.Duration `koanf:"check_interval" validate:"required"`
	BatchLimit    int           `koanf:"batch_limit" validate:"min=1"`
	Strategy      string        `koanf:"strategy" validate:"oneof=sequential parallel"`
	Workers       int           `koanf:"workers" validate:"min=1"`
	ClaimTimeout  time.Duration `koanf:"claim_timeout" validate:"required"`
}

// GithubConfig contains GitHub API client configuration.
type GithubConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout" validate:"required"`
	RateLimit float64       `koanf:"rate_limit" validate:"gt=0"`
}

// StackOverflowConfig contains StackExchange API client configuration.
type StackOverflowConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required,url"`
	Key         string        `koanf:"key"`
	AccessToken string        `koanf:"access_token"`
	Timeout     time.Duration `koanf:"timeout" validate:"required"`
	RateLimit   float64       `koanf:"rate_limit" validate:"gt=0"`
}

// KafkaConfig contains message bus configuration.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers" validate:"required,min=1"`
	Topic   string   `koanf:"topic" validate:"required"`
	GroupID string   `koanf:"group_id" validate:"required"`
}

// RedisConfig contains digest store configuration.
type RedisConfig struct {
	Addr      string        `koanf:"addr" validate:"required"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"min=0"`
	DigestTTL time.Duration `koanf:"digest_ttl" validate:"required"`
}

// RelayConfig controls the outbox relay.
type RelayConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"min=1"`
}

// Default returns the configuration defaults applied before file and
// environment overrides.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{Host: "0.0.0.0", Port: "8080"},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Scheduler: SchedulerConfig{
			TickInterval:  time.Minute,
			CheckInterval: 5 * time.Minute,
			BatchLimit:    100,
			Strategy:      "parallel",
			Workers:       4,
			ClaimTimeout:  5 * time.Second,
		},
		Github: GithubConfig{
			BaseURL:   "https://api.github.com",
			Timeout:   10 * time.Second,
			RateLimit: 5,
		},
		StackOverflow: StackOverflowConfig{
			BaseURL:   "https://api.stackexchange.com/2.3",
			Timeout:   10 * time.Second,
			RateLimit: 5,
		},
		Kafka: KafkaConfig{
			Topic:   "link-updates",
			GroupID: "linkwatch-digest",
		},
		Redis: RedisConfig{
			DigestTTL: 25 * time.Hour,
		},
		Relay: RelayConfig{
			Interval:  10 * time.Second,
			BatchSize: 100,
		},
	}
}

// Load reads configuration from the given YAML file (optional) and the
// environment, layered over defaults, and validates the result.
// Environment variables use the LINKWATCH_ prefix with underscores as
// separators, e.g. LINKWATCH_DATABASE_URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps LINKWATCH_DATABASE_URL to "database.url". Only the
// first underscore becomes a section separator so multi-word keys like
// max_open_conns survive.
func envKeyMapper(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}
