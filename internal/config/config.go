package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const devJWTSecret = "dev-secret-change-in-production"

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set in production environment")

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Database  Database  `envconfig:"DATABASE"`
	JWT       JWT       `envconfig:"JWT"`
	RateLimit RateLimit `envconfig:"RATE_LIMIT"`
}

type Database struct {
	// Driver is "mysql" or "libsql".
	Driver          string        `envconfig:"DRIVER" default:"mysql"`
	DSN             string        `envconfig:"DSN" default:"root:password@tcp(127.0.0.1:3306)/vaultpass?parseTime=true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
	Migrate         bool          `envconfig:"MIGRATE" default:"true"`
}

type JWT struct {
	Secret   string        `envconfig:"SECRET" default:"dev-secret-change-in-production"`
	Issuer   string        `envconfig:"ISSUER" default:"vaultpass"`
	Audience string        `envconfig:"AUDIENCE" default:"vaultpass-api"`
	Expiry   time.Duration `envconfig:"EXPIRY" default:"24h"`
}

// RateLimit holds per-actor limits for read (GET) and write (POST/PATCH/DELETE) routes.
type RateLimit struct {
	ReadRPS    float64 `envconfig:"READ_RPS" default:"10"`
	ReadBurst  int     `envconfig:"READ_BURST" default:"60"`
	WriteRPS   float64 `envconfig:"WRITE_RPS" default:"2"`
	WriteBurst int     `envconfig:"WRITE_BURST" default:"20"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects settings the server must not start with.
func (c Config) Validate() error {
	if c.IsProduction() && c.JWT.Secret == devJWTSecret {
		return ErrInsecureJWTSecret
	}
	switch c.Database.Driver {
	case "mysql", "libsql":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
