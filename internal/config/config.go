// Package config provides configuration for the flight recorder server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int
	APIToken string // Bearer token required on /api/v1 when set

	// Database
	DatabaseURL string

	// Replay worker
	ReplayWorkerInterval time.Duration
	ReplayWorkerBatch    int
	PolicyFile           string // Optional rego module replacing the default admission policy

	// Status stream settings
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration
	WSReadTimeout  time.Duration

	// Optional NATS fan-out of replay status changes
	NATSURL     string
	NATSSubject string

	// Logging
	LogLevel string
}

// fileConfig is the optional TOML file layout.
type fileConfig struct {
	Server struct {
		HTTPPort    int    `toml:"http_port"`
		DatabaseURL string `toml:"database_url"`
		LogLevel    string `toml:"log_level"`
		APIToken    string `toml:"api_token"`
	} `toml:"server"`
	Replay struct {
		WorkerIntervalMs int    `toml:"worker_interval_ms"`
		WorkerBatch      int    `toml:"worker_batch"`
		PolicyFile       string `toml:"policy_file"`
	} `toml:"replay"`
	Stream struct {
		PingIntervalMs int `toml:"ping_interval_ms"`
		WriteTimeoutMs int `toml:"write_timeout_ms"`
		ReadTimeoutMs  int `toml:"read_timeout_ms"`
	} `toml:"stream"`
	NATS struct {
		URL     string `toml:"url"`
		Subject string `toml:"subject"`
	} `toml:"nats"`
}

// Load loads configuration. Precedence: environment (including .env), then
// the TOML file named by FLIGHTDECK_CONFIG, then defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var file fileConfig
	if path := os.Getenv("FLIGHTDECK_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPPort:             getEnvInt("HTTP_PORT", orInt(file.Server.HTTPPort, 8080)),
		APIToken:             getEnv("API_TOKEN", file.Server.APIToken),
		DatabaseURL:          getEnv("DATABASE_URL", orString(file.Server.DatabaseURL, "file:flightdeck.db?cache=shared&mode=rwc")),
		ReplayWorkerInterval: time.Duration(getEnvInt("REPLAY_WORKER_INTERVAL_MS", orInt(file.Replay.WorkerIntervalMs, 500))) * time.Millisecond,
		ReplayWorkerBatch:    getEnvInt("REPLAY_WORKER_BATCH", orInt(file.Replay.WorkerBatch, 10)),
		PolicyFile:           getEnv("REPLAY_POLICY_FILE", file.Replay.PolicyFile),
		WSPingInterval:       time.Duration(getEnvInt("WS_PING_INTERVAL_MS", orInt(file.Stream.PingIntervalMs, 30000))) * time.Millisecond,
		WSWriteTimeout:       time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", orInt(file.Stream.WriteTimeoutMs, 10000))) * time.Millisecond,
		WSReadTimeout:        time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", orInt(file.Stream.ReadTimeoutMs, 60000))) * time.Millisecond,
		NATSURL:              getEnv("NATS_URL", file.NATS.URL),
		NATSSubject:          getEnv("NATS_SUBJECT", orString(file.NATS.Subject, "flightdeck.replay")),
		LogLevel:             getEnv("LOG_LEVEL", orString(file.Server.LogLevel, "info")),
	}
	if cfg.ReplayWorkerBatch <= 0 {
		return nil, fmt.Errorf("REPLAY_WORKER_BATCH must be positive, got %d", cfg.ReplayWorkerBatch)
	}
	if cfg.ReplayWorkerInterval <= 0 {
		return nil, fmt.Errorf("REPLAY_WORKER_INTERVAL_MS must be positive")
	}
	return cfg, nil
}

// Level maps LogLevel to a gommon level; unknown names mean info.
func (c *Config) Level() log.Lvl {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
