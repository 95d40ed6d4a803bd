// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the relay.
package server

import (
	"fmt"
	"sync"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// RateLimitConfig defines the parameters for per-connection inbound line
// rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" validate:"omitempty,gt=0"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`
}

// Config holds the relay's runtime settings.
type Config struct {
	Addr           string        `env:"LISTEN_ADDR"`
	PublicDir      string        `env:"PUBLIC_DIR"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" validate:"omitempty,gt=0"`
	DefaultColor   string        `env:"DEFAULT_COLOR" validate:"omitempty,hexcolor"`
	SendBuffer     int           `env:"SEND_BUFFER" validate:"omitempty,gt=0"`
	LogLevel       string        `env:"LOG_LEVEL" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	RateLimit      RateLimitConfig
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Addr:           ":8080",
		PublicDir:      "./static",
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 512,
		DefaultColor:   "#000000",
		SendBuffer:     256,
		LogLevel:       "INFO",
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.PublicDir == "" {
		cfg.PublicDir = defaults.PublicDir
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.DefaultColor == "" {
		cfg.DefaultColor = defaults.DefaultColor
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to
// defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with default values for all
// settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling
// back to defaults for anything unset, and validates the result.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
