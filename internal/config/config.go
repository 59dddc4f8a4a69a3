package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level `env:"-"`
	RawLogLevel string     `env:"LOG_LEVEL" envDefault:"info"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	NPCAPIURL     string        `env:"NPC_API_URL" envDefault:"http://localhost:8000"`
	NavAPIURL     string        `env:"NAV_API_URL" envDefault:"http://localhost:8001"`
	StorageAPIURL string        `env:"STORAGE_API_URL" envDefault:"http://localhost:8002"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// One of GameID or GameFile selects the game to drive.
	GameID     string `env:"GAME_ID"`
	GameFile   string `env:"GAME_FILE"`
	NavWorldID string `env:"NAV_WORLD_ID"`

	ThinkBaseDelay  time.Duration `env:"THINK_BASE_DELAY" envDefault:"15s"`
	ThinkJitter     time.Duration `env:"THINK_JITTER" envDefault:"10s"`
	ThinkErrorDelay time.Duration `env:"THINK_ERROR_DELAY" envDefault:"20s"`
	StepInterval    time.Duration `env:"STEP_INTERVAL" envDefault:"40ms"`
	FeedCap         int           `env:"FEED_CAP" envDefault:"50"`

	// DriverID identifies this process when holding a game lock. Empty means
	// a random id is generated at startup.
	DriverID string `env:"DRIVER_ID"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)
	if cfg.FeedCap <= 0 {
		return nil, fmt.Errorf("FEED_CAP must be positive, got %d", cfg.FeedCap)
	}
	return cfg, nil
}

// HasGame reports whether a game source is configured.
func (c *Config) HasGame() bool {
	return c.GameID != "" || c.GameFile != ""
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
