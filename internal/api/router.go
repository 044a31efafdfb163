package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/albumforge/albumforge/internal/database"
	mw "github.com/albumforge/albumforge/internal/middleware"
	inats "github.com/albumforge/albumforge/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Public editor-facing handlers
	VerifyKey http.HandlerFunc
	Generate  http.HandlerFunc

	// Admin handlers
	ListKeys  http.HandlerFunc
	CreateKey http.HandlerFunc
	UpdateKey http.HandlerFunc
	DeleteKey http.HandlerFunc
	Setup     http.HandlerFunc
	ListAudit http.HandlerFunc

	// Admin secret middleware
	AdminMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	PublicRateLimiter  func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and, when configured, NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Editor-facing routes (public) — optionally rate-limited per IP
		r.Group(func(r chi.Router) {
			if cfg.PublicRateLimiter != nil {
				r.Use(cfg.PublicRateLimiter)
			}
			r.Post("/user/verify", h.VerifyKey)
			r.Post("/ai/generate", h.Generate)
		})

		// Admin routes, behind the shared secret
		r.Group(func(r chi.Router) {
			r.Use(h.AdminMiddleware)

			r.Route("/admin", func(r chi.Router) {
				r.Route("/keys", func(r chi.Router) {
					r.Get("/", h.ListKeys)
					r.Post("/", h.CreateKey)
					r.Put("/", h.UpdateKey)
					r.Delete("/", h.DeleteKey)
				})

				r.Get("/setup", h.Setup)
				r.Post("/setup", h.Setup)

				r.Get("/audit", h.ListAudit)
			})
		})
	})

	return r
}
