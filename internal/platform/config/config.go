package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	ChangeFeedPostgres = "postgres"
	ChangeFeedRedis    = "redis"

	minSessionSecretLen = 32
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" default:"10"`
	RedisURL    string `env:"REDIS_URL"`
	ChangeFeed  string `env:"CHANGE_FEED" default:"postgres"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	AdminPassword string        `env:"ADMIN_PASSWORD"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"720h"` // 30 days

	MediaDir     string `env:"MEDIA_DIR" default:"./media"`
	MediaBaseURL string `env:"MEDIA_BASE_URL" default:"/media"`

	HubPulseInterval time.Duration `env:"HUB_PULSE_INTERVAL" default:"30s"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS"`

	LoginRateLimit float64 `env:"LOGIN_RATE_LIMIT" default:"0.2"`
	LoginRateBurst int     `env:"LOGIN_RATE_BURST" default:"5"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var missing []string
	for name, value := range map[string]string{
		"DATABASE_URL":   cfg.DatabaseURL,
		"ADMIN_PASSWORD": cfg.AdminPassword,
		"SESSION_SECRET": cfg.SessionSecret,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if len(cfg.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}

	switch cfg.ChangeFeed {
	case ChangeFeedPostgres:
	case ChangeFeedRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when CHANGE_FEED=redis")
		}
	default:
		return fmt.Errorf("CHANGE_FEED must be %q or %q, got %q", ChangeFeedPostgres, ChangeFeedRedis, cfg.ChangeFeed)
	}

	if cfg.HubPulseInterval <= 0 {
		return errors.New("HUB_PULSE_INTERVAL must be positive")
	}
	if cfg.DBMaxConns < 0 {
		return errors.New("DB_MAX_CONNS must not be negative")
	}

	if cfg.IsProduction() {
		if err := validateSSLMode(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func validateSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if slices.Contains([]string{"disable", "allow"}, mode) {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
