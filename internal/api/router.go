package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds all handler instances and middleware for route wiring.
type Dependencies struct {
	Messages  *MessageHandler
	Dashboard *DashboardHandler
	Health    *HealthHandler

	// Limiter is nil when rate limiting is disabled.
	Limiter   RateLimiter
	RateLimit int
}

// SetupRouter registers all routes on the Echo instance.
func SetupRouter(e *echo.Echo, deps *Dependencies) {
	e.Use(MetricsMiddleware())
	SetupOpsRoutes(e, deps.Health)

	e.GET("/", deps.Dashboard.Show)

	api := e.Group("/api", RateLimitMiddleware(deps.Limiter, deps.RateLimit, time.Minute))
	api.GET("/latest", deps.Messages.Latest)
	api.GET("/messages", deps.Messages.Messages)
}

// SetupOpsRoutes registers /health and /metrics. The listener serves only
// these on its side port.
func SetupOpsRoutes(e *echo.Echo, health *HealthHandler) {
	e.GET("/health", health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
