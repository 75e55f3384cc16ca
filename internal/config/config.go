package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Engine   EngineConfig   `envPrefix:"ENGINE_"`
	Sweeper  SweeperConfig  `envPrefix:"SWEEPER_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
}

// AppConfig represents process-level settings.
type AppConfig struct {
	Name     string `env:"NAME" envDefault:"stock-market"`
	GRPCPort int    `env:"GRPC_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// StopTimeout bounds how long graceful shutdown waits for the
	// background loops to finish their current tick.
	StopTimeout time.Duration `env:"STOP_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig represents the PostgreSQL connection settings.
type DatabaseConfig struct {
	ConnString string `env:"CONN_STR"`
	Host       string `env:"HOST" envDefault:"localhost"`
	Port       int    `env:"PORT" envDefault:"5432"`
	User       string `env:"USER" envDefault:"postgres"`
	Password   string `env:"PASSWORD" envDefault:"postgres"`
	Name       string `env:"NAME" envDefault:"stockmarket"`
	SSLMode    string `env:"SSL_MODE" envDefault:"disable"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	PingTimeout     time.Duration `env:"PING_TIMEOUT" envDefault:"5s"`
}

// DSN returns the connection string, built from the individual fields
// when no explicit one is set.
func (d DatabaseConfig) DSN() string {
	if d.ConnString != "" {
		return d.ConnString
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// EngineConfig tunes the price update engine.
type EngineConfig struct {
	// Interval is the base sleep between ticks.
	Interval time.Duration `env:"INTERVAL" envDefault:"2s"`
	// Jitter widens the sleep by a random amount in [0, Jitter).
	Jitter time.Duration `env:"JITTER" envDefault:"500ms"`
	// Backoff is the longer sleep used after a failed tick.
	Backoff time.Duration `env:"BACKOFF" envDefault:"5s"`
	// Noise selects the distribution: "normal" or "uniform".
	Noise string `env:"NOISE" envDefault:"normal"`
	// Volatility is the standard deviation (normal) or half-width
	// (uniform) of the per-tick relative price change.
	Volatility float64 `env:"VOLATILITY" envDefault:"0.02"`
	// Drift is the mean relative change per tick (normal noise only).
	Drift float64 `env:"DRIFT" envDefault:"0.001"`
}

// SweeperConfig tunes the price-history retention sweeper.
type SweeperConfig struct {
	Interval   time.Duration `env:"INTERVAL" envDefault:"1h"`
	Retention  time.Duration `env:"RETENTION" envDefault:"44544h"` // 1856 days
	BatchSize  int           `env:"BATCH_SIZE" envDefault:"1000"`
	BatchPause time.Duration `env:"BATCH_PAUSE" envDefault:"50ms"`
}

// AuthConfig tunes credential issuance.
type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET" envDefault:"dev-secret-change-in-production"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
