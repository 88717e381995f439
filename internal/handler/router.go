package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vaultpass/consumer-secrets/internal/config"
	"github.com/vaultpass/consumer-secrets/internal/crypto"
	"github.com/vaultpass/consumer-secrets/internal/middleware"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Token     crypto.TokenConfig
	RateLimit config.RateLimit
	Secrets   *ConsumerSecretHandler
	DB        Pinger
	Logger    *slog.Logger
}

// NewRouter builds the API router. ctx bounds the lifetime of background work
// started by middleware.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", HandleHealth(cfg.DB))

	readLimit := middleware.RateLimit(ctx, cfg.RateLimit.ReadRPS, cfg.RateLimit.ReadBurst)
	writeLimit := middleware.RateLimit(ctx, cfg.RateLimit.WriteRPS, cfg.RateLimit.WriteBurst)

	r.Route("/api/v1/consumer-secrets", func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.Token))

		r.Group(func(r chi.Router) {
			r.Use(readLimit)
			r.Get("/", cfg.Secrets.HandleList)
			r.Get("/{id}", cfg.Secrets.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(writeLimit)
			r.Post("/", cfg.Secrets.HandleCreate)
			r.Patch("/{id}", cfg.Secrets.HandleUpdate)
			r.Delete("/{id}", cfg.Secrets.HandleDelete)
		})
	})

	return r
}

// HandleHealth handles GET /health requests.
func HandleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				slog.Warn("health check: database unreachable", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
