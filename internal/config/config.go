package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the server configuration, read from the environment.
type Config struct {
	StoreDriver        string        `env:"STORE_DRIVER"          envDefault:"postgres"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	SQLitePath         string        `env:"SQLITE_PATH"           envDefault:"trailweather.db"`
	RedisURL           string        `env:"REDIS_URL"`
	BearerToken        string        `env:"BEARER_TOKEN,required,notEmpty"`
	Port               string        `env:"PORT"                  envDefault:"8080"`
	DiceSeed           int64         `env:"DICE_SEED"`
	CacheTTL           time.Duration `env:"CACHE_TTL"             envDefault:"24h"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT"      envDefault:"30s"`
}

// Load reads an optional .env file from the working directory, then parses
// the environment. Variables already set take precedence over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings env tags cannot express.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %s", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty when STORE_DRIVER is %s", DriverSQLite)
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q must be %s or %s", c.StoreDriver, DriverPostgres, DriverSQLite)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	return nil
}

// CacheEnabled reports whether a Redis URL was configured.
func (c Config) CacheEnabled() bool {
	return c.RedisURL != ""
}
