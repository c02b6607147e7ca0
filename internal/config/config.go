package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MaxFeedPageSize matches the largest page the history endpoint serves.
const MaxFeedPageSize = 100

type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"pulse"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"pulse_dev_password"`
	DBName     string `env:"DB_NAME" envDefault:"pulse"`
	JWTSecret  string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"LOG_FILE"`

	// History reads are limited per client IP.
	HistoryRateLimit float64 `env:"HISTORY_RATE_LIMIT" envDefault:"20"`
	HistoryRateBurst int     `env:"HISTORY_RATE_BURST" envDefault:"40"`

	Feed FeedConfig `envPrefix:"FEED_"`
}

// FeedConfig holds the client side settings of the message feed.
type FeedConfig struct {
	HistoryURL          string        `env:"HISTORY_URL" envDefault:"http://localhost:8080"`
	HistoryPath         string        `env:"HISTORY_PATH" envDefault:"/api/v1/conversations/"`
	LiveURL             string        `env:"LIVE_URL" envDefault:"ws://localhost:8080/ws"`
	Token               string        `env:"TOKEN"`
	PageSize            int           `env:"PAGE_SIZE" envDefault:"50"`
	DebounceWindow      time.Duration `env:"DEBOUNCE" envDefault:"500ms"`
	AutoScrollThreshold int           `env:"AUTOSCROLL_THRESHOLD" envDefault:"200"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.Feed.PageSize <= 0 || cfg.Feed.PageSize > MaxFeedPageSize {
		return nil, fmt.Errorf("FEED_PAGE_SIZE must be between 1 and %d, got %d", MaxFeedPageSize, cfg.Feed.PageSize)
	}
	if cfg.Feed.DebounceWindow <= 0 {
		return nil, fmt.Errorf("FEED_DEBOUNCE must be positive, got %s", cfg.Feed.DebounceWindow)
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
