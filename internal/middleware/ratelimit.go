package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/service"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
	"github.com/noah-isme/craft-api/pkg/response"
)

// RateLimitStore counts hits per key within a window.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	Requests int
	Window   time.Duration
	Metrics  *service.MetricsService
	Logger   *zap.Logger
}

// RateLimit allows opts.Requests per client IP and route within opts.Window.
// Store failures let the request through.
func RateLimit(store RateLimitStore, opts RateLimitOptions) gin.HandlerFunc {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	return func(c *gin.Context) {
		if store == nil || opts.Requests <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		count, ttl, err := store.Hit(c.Request.Context(), route+":"+c.ClientIP(), opts.Window)
		if err != nil {
			opts.Logger.Warn("rate limiter unavailable", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(opts.Requests))
		remaining := int64(opts.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(opts.Requests) {
			if ttl <= 0 {
				ttl = opts.Window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			opts.Metrics.RecordRateLimited(route)
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
