package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/msaad732/meme-coin/internal/metrics"
)

// RateLimiter counts hits in a fixed window. *redis.Client implements it.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count int64, ttlMs int64, err error)
}

// RateLimitMiddleware limits requests per client IP and route. A nil limiter
// disables limiting; limiter errors let the request through.
func RateLimitMiddleware(limiter RateLimiter, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil || limit < 1 {
			return next
		}
		return func(c echo.Context) error {
			key := fmt.Sprintf("rl:ip:%s:%s", c.RealIP(), c.Path())

			allowed, count, ttlMs, err := limiter.CheckRateLimit(c.Request().Context(), key, limit, window)
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request", "error", err)
				return next(c)
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond).Unix()

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

			if !allowed {
				metrics.RateLimitHits.Inc()
				retryAfterSec := (ttlMs + 999) / 1000 // round up to next second
				c.Response().Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
				return Error(c, http.StatusTooManyRequests, "too many requests, please try again later")
			}

			return next(c)
		}
	}
}
