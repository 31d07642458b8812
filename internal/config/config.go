// Package config assembles runtime settings from environment variables,
// with an optional YAML overlay for deploy-time overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	NATS     NATSConfig     `yaml:"nats"`
	Auth     AuthConfig     `yaml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// NATSConfig holds the event stream settings.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Stream   string `yaml:"stream"`
	Consumer string `yaml:"consumer"`
	Enabled  bool   `yaml:"enabled"`
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// RealtimeConfig holds websocket gateway settings.
type RealtimeConfig struct {
	SendBuffer       int           `yaml:"sendBuffer"`
	HeartbeatTimeout time.Duration `yaml:"heartbeatTimeout"`
	SweepInterval    time.Duration `yaml:"sweepInterval"`
}

// JobsConfig sizes the combine-job worker pool.
type JobsConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queueDepth"`
}

// FromEnv reads configuration from environment variables with defaults. If
// overlayPath is non-empty the YAML file there is applied on top.
func FromEnv(overlayPath string) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 8080),
			CORSOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:5173")},
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "boardroom"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		NATS: NATSConfig{
			URL:      getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:   getEnv("NATS_STREAM", "BOARD_EVENTS"),
			Consumer: getEnv("NATS_CONSUMER", "board-gateway"),
			Enabled:  getEnvBool("NATS_ENABLED", true),
		},
		Auth: AuthConfig{
			Secret:   getEnv("AUTH_SECRET", ""),
			TokenTTL: getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		Realtime: RealtimeConfig{
			SendBuffer:       getEnvInt("WS_SEND_BUFFER", 256),
			HeartbeatTimeout: getEnvDuration("WS_HEARTBEAT_TIMEOUT", 90*time.Second),
			SweepInterval:    getEnvDuration("WS_SWEEP_INTERVAL", 30*time.Second),
		},
		Jobs: JobsConfig{
			Workers:    getEnvInt("JOB_WORKERS", 2),
			QueueDepth: getEnvInt("JOB_QUEUE_DEPTH", 64),
		},
	}

	if overlayPath != "" {
		if err := cfg.applyOverlay(overlayPath); err != nil {
			return Config{}, err
		}
	}

	if cfg.Auth.Secret == "" {
		return Config{}, fmt.Errorf("AUTH_SECRET is required")
	}
	return cfg, nil
}

func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config overlay: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
