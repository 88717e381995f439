package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultpass/consumer-secrets/internal/config"
	"github.com/vaultpass/consumer-secrets/internal/crypto"
	"github.com/vaultpass/consumer-secrets/internal/handler"
	"github.com/vaultpass/consumer-secrets/internal/permission"
	"github.com/vaultpass/consumer-secrets/internal/repository"
	"github.com/vaultpass/consumer-secrets/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	db, err := repository.NewDB(cfg.Database)
	if err != nil {
		slog.Error("database setup failed", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			slog.Error("database migration failed", "error", err)
			os.Exit(1)
		}
	}

	secretRepo := repository.NewConsumerSecretRepository(db)
	memberRepo := repository.NewMembershipRepository(db)
	gate := permission.NewGate(permission.NewMembershipResolver(memberRepo))
	secretService := service.NewConsumerSecretService(secretRepo, gate)
	secretHandler := handler.NewConsumerSecretHandler(secretService)

	appCtx, stop := context.WithCancel(context.Background())
	defer stop()

	router := handler.NewRouter(appCtx, handler.RouterConfig{
		Token: crypto.TokenConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
			Expiry:   cfg.JWT.Expiry,
		},
		RateLimit: cfg.RateLimit,
		Secrets:   secretHandler,
		DB:        db,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "driver", db.Driver())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
