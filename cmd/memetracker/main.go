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

	"github.com/labstack/echo/v4"

	"github.com/msaad732/meme-coin/internal/api"
	"github.com/msaad732/meme-coin/internal/audit"
	"github.com/msaad732/meme-coin/internal/config"
	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/fallback"
	"github.com/msaad732/meme-coin/internal/gateway"
	"github.com/msaad732/meme-coin/internal/ingest"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := cfg.Validate("DISCORD_TOKEN"); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	if len(cfg.TargetChannelIDs) == 0 {
		slog.Warn("TARGET_CHANNEL_IDS is empty, no messages will be captured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	var store database.MessageStore
	s, err := database.Open(cfg.DatabaseURL, cfg.ConnectTimeout)
	switch {
	case err == nil:
		store = s
		defer s.Close()
		if err := s.EnsureSchema(ctx); err != nil {
			slog.Warn("store not ready, records go to the fallback log until it is", "error", err)
		}
	case errors.Is(err, database.ErrNotConfigured):
		slog.Warn("DATABASE_URL not set, writing to the fallback log only", "path", cfg.FallbackPath)
	default:
		slog.Error("opening store", "error", err)
		return 1
	}

	auditLog, err := audit.New(cfg.AuditLogPath)
	if err != nil {
		slog.Error("audit log", "error", err)
		return 1
	}
	defer auditLog.Sync()

	// --- Listener ---

	listener := ingest.New(ingest.Config{
		Store:           store,
		Fallback:        fallback.New(cfg.FallbackPath),
		Audit:           auditLog,
		AllowedChannels: cfg.TargetChannelIDs,
		SelfID:          cfg.SelfUserID,
		Concurrency:     cfg.WriteConcurrency,
	})

	client := gateway.New(gateway.Options{
		URL:     cfg.GatewayURL,
		Token:   cfg.DiscordToken,
		OnReady: listener.SetSelfID,
	}, listener.HandleMessage)

	// --- Ops endpoints ---

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	api.SetupOpsRoutes(e, api.NewHealthHandler(map[string]api.Pinger{"store": store}))

	go func() {
		slog.Info("ops server starting", "addr", cfg.MetricsAddr)
		if err := e.Start(cfg.MetricsAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server error", "error", err)
		}
	}()

	// --- Start ---

	slog.Info("memetracker listening", "channels", cfg.TargetChannelIDs, "store", store != nil, "fallback", cfg.FallbackPath)
	exit := 0
	if err := client.Run(ctx); err != nil {
		slog.Error("gateway stopped", "error", err)
		exit = 1
	}

	slog.Info("shutting down, waiting for pending writes")
	listener.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops server shutdown", "error", err)
	}
	return exit
}
