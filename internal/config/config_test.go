package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if cfg.JWT.Expiry != 24*time.Hour {
		t.Errorf("JWT.Expiry = %v, want 24h", cfg.JWT.Expiry)
	}
	if cfg.RateLimit.WriteBurst != 20 {
		t.Errorf("RateLimit.WriteBurst = %d, want 20", cfg.RateLimit.WriteBurst)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "libsql")
	t.Setenv("DATABASE_DSN", "file:/tmp/secrets.db")
	t.Setenv("JWT_EXPIRY", "15m")
	t.Setenv("RATE_LIMIT_READ_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.Database.Driver != "libsql" || cfg.Database.DSN != "file:/tmp/secrets.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.JWT.Expiry != 15*time.Minute {
		t.Errorf("JWT.Expiry = %v, want 15m", cfg.JWT.Expiry)
	}
	if cfg.RateLimit.ReadRPS != 2.5 {
		t.Errorf("RateLimit.ReadRPS = %v, want 2.5", cfg.RateLimit.ReadRPS)
	}
}

func TestLoadRejectsDevSecretInProduction(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "production")

	_, err := Load()
	if !errors.Is(err, ErrInsecureJWTSecret) {
		t.Fatalf("Load() error = %v, want ErrInsecureJWTSecret", err)
	}

	t.Setenv("JWT_SECRET", "a-real-secret")
	if _, err := Load(); err != nil {
		t.Fatalf("Load() unexpected error with real secret: %v", err)
	}
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := Config{Database: Database{Driver: "oracle"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for unsupported driver")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.in}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
