package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/msaad732/meme-coin/internal/api"
	"github.com/msaad732/meme-coin/internal/config"
	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/fallback"
	"github.com/msaad732/meme-coin/internal/redis"
	"github.com/msaad732/meme-coin/internal/service"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// --- Infrastructure ---

	checks := map[string]api.Pinger{"store": nil, "redis": nil}

	var store database.MessageStore
	s, err := database.Open(cfg.DatabaseURL, cfg.ConnectTimeout)
	switch {
	case err == nil:
		store = s
		checks["store"] = s
		defer s.Close()
	case errors.Is(err, database.ErrNotConfigured):
		slog.Warn("DATABASE_URL not set, serving the fallback log only", "path", cfg.FallbackPath)
	default:
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}

	var limiter api.RateLimiter
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, rate limiting disabled", "error", err)
		} else {
			defer rdb.Close()
			limiter = rdb
			checks["redis"] = rdb
		}
	}

	reads := service.NewReadService(store, fallback.New(cfg.FallbackPath))

	// --- Echo ---

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	api.SetupRouter(e, &api.Dependencies{
		Messages:  api.NewMessageHandler(reads),
		Dashboard: api.NewDashboardHandler(reads),
		Health:    api.NewHealthHandler(checks),
		Limiter:   limiter,
		RateLimit: cfg.RateLimit,
	})

	// --- Start ---

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", cfg.ServerAddr, "store", store != nil, "rate_limit", limiter != nil)
		if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}
