package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/congo-pay/escrow/internal/money"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string        `env:"APP_NAME"         envDefault:"CongoEscrow"`
	AppEnv          string        `env:"APP_ENV"          envDefault:"development"`
	Port            string        `env:"PORT"             envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	ShutdownPeriod  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL"  envDefault:"24h"`
	AdminHolder     string        `env:"ADMIN_HOLDER"`
	JWTSecret       string        `env:"JWT_SECRET"`
	AmountDecimals  int           `env:"AMOUNT_DECIMALS"  envDefault:"2"`
	KYCSubmitLimit  int           `env:"KYC_SUBMIT_LIMIT" envDefault:"5"`
	EventsChannel   string        `env:"EVENTS_CHANNEL"   envDefault:"escrow.events"`
	WithdrawalLease time.Duration `env:"WITHDRAWAL_LEASE" envDefault:"5m"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AdminHolder) == "" {
		return fmt.Errorf("ADMIN_HOLDER must be set")
	}
	if c.AmountDecimals < 0 || c.AmountDecimals > money.MaxDecimals {
		return fmt.Errorf("AMOUNT_DECIMALS must be between 0 and %d", money.MaxDecimals)
	}
	if c.ShutdownPeriod <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.WithdrawalLease <= 0 {
		return fmt.Errorf("WITHDRAWAL_LEASE must be positive")
	}
	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDev reports whether the service runs in a local development mode, where
// Postgres and Redis are optional and holders may be passed in a header.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
