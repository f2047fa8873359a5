// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds every tunable of the standings service. Cache capacities
// default to the sizes the engine was profiled with: 40 raw fetches, 10
// aggregate results, 43 profile lookups.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `env:"STANDINGS_LISTEN_ADDR" envDefault:":8000"`

	// ContestAPIURL is the contest record API root.
	ContestAPIURL string `env:"STANDINGS_CONTEST_API_URL" envDefault:"https://lccn.lbao.site/api/v1" validate:"required,url"`

	// ProfileAPIURL is the upstream GraphQL profile endpoint.
	ProfileAPIURL string `env:"STANDINGS_PROFILE_API_URL" envDefault:"https://leetcode.com/graphql/" validate:"required,url"`

	// DirectoryURL is the RTDB-style store holding channel membership.
	DirectoryURL string `env:"STANDINGS_DIRECTORY_URL" validate:"required,url"`

	// AllowedOrigins is the comma-separated CORS allow list for browser
	// clients.
	AllowedOrigins []string `env:"STANDINGS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000" validate:"required,min=1,dive,required"`

	// FetchTimeout bounds every outbound read; exceeding it surfaces as a
	// transport failure.
	FetchTimeout time.Duration `env:"STANDINGS_FETCH_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	FetchCacheCapacity   int `env:"STANDINGS_FETCH_CACHE_CAPACITY" envDefault:"40" validate:"min=1"`
	ResultCacheCapacity  int `env:"STANDINGS_RESULT_CACHE_CAPACITY" envDefault:"10" validate:"min=1"`
	ProfileCacheCapacity int `env:"STANDINGS_PROFILE_CACHE_CAPACITY" envDefault:"43" validate:"min=1"`

	// FetchRPS and FetchBurst shape the outbound token bucket. A zero
	// FetchRPS disables throttling.
	FetchRPS   float64 `env:"STANDINGS_FETCH_RPS" envDefault:"8" validate:"min=0"`
	FetchBurst int     `env:"STANDINGS_FETCH_BURST" envDefault:"4" validate:"min=0"`

	// ProfileWorkers bounds the concurrent profile fan-out.
	ProfileWorkers int `env:"STANDINGS_PROFILE_WORKERS" envDefault:"4" validate:"min=1"`

	ShutdownTimeout time.Duration `env:"STANDINGS_SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"STANDINGS_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	if err := validate.Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps the configured level name to its slog value.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
