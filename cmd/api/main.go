package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/albumforge/albumforge/internal/admin"
	"github.com/albumforge/albumforge/internal/api"
	"github.com/albumforge/albumforge/internal/audit"
	"github.com/albumforge/albumforge/internal/config"
	"github.com/albumforge/albumforge/internal/database"
	"github.com/albumforge/albumforge/internal/genai"
	"github.com/albumforge/albumforge/internal/generate"
	"github.com/albumforge/albumforge/internal/middleware"
	inats "github.com/albumforge/albumforge/internal/nats"
	"github.com/albumforge/albumforge/internal/quota"
	iredis "github.com/albumforge/albumforge/internal/redis"
	"github.com/albumforge/albumforge/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Migrations
	runMigrations := func() (uint, error) {
		return database.RunMigrations(cfg.DB.DSN(), cfg.Migrations.Path)
	}
	if cfg.Migrations.Auto {
		if _, err := runMigrations(); err != nil {
			slog.Error("applying migrations", "error", err)
			os.Exit(1)
		}
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it audit events are simply not recorded.
	var natsClient *inats.Client
	var publisher *inats.Publisher
	auditRepo := audit.NewRepository(pool)
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		publisher = inats.NewPublisher(natsClient.JetStream())

		consumer := audit.NewConsumer(auditRepo, inats.NewConsumerManager(natsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Quota gate
	quotaRepo := quota.NewRepository(pool)
	quotaSvc := quota.NewService(quotaRepo)
	quotaHandler := quota.NewHandler(quotaSvc)

	// AI proxy
	genaiClient := genai.NewClient(cfg.Gemini)
	generateSvc := generate.NewService(quotaSvc, genaiClient, publisher)
	generateHandler := generate.NewHandler(generateSvc)

	// Admin surface
	adminHandler := admin.NewHandler(quotaSvc, auditRepo, runMigrations, publisher)

	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSeconds)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		PublicRateLimiter:  rateLimiter.Middleware,
	}, api.HandlerSet{
		VerifyKey: quotaHandler.Verify,
		Generate:  generateHandler.Generate,

		ListKeys:  adminHandler.ListKeys,
		CreateKey: adminHandler.CreateKey,
		UpdateKey: adminHandler.UpdateKey,
		DeleteKey: adminHandler.DeleteKey,
		Setup:     adminHandler.Setup,
		ListAudit: adminHandler.ListAudit,

		AdminMiddleware: admin.RequireSecret(cfg.Admin),
	})

	// The write timeout must outlive a full provider round trip.
	writeTimeout := cfg.Gemini.Timeout + 10*time.Second

	srv := server.New(cfg.Server, router, writeTimeout)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
