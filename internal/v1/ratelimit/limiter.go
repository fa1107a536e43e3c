// Package ratelimit implements connection rate limiting using an in-process
// memory store. VoiceSync has no authenticated identity at connect time, so
// limiting is keyed by client IP only, unlike the teacher's user-vs-IP split.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/config"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/metrics"
	"go.uber.org/zap"
)

// RateLimiter holds the rate limiter instances for the HTTP surface and the
// WebSocket upgrade endpoint.
type RateLimiter struct {
	apiGlobal *limiter.Limiter
	wsConnect *limiter.Limiter
}

// NewRateLimiter creates a new RateLimiter instance backed by a memory store.
func NewRateLimiter(cfg *config.Config) (*RateLimiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitApiGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}

	wsConnectRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsConnect)
	if err != nil {
		return nil, fmt.Errorf("invalid WS connect rate: %w", err)
	}

	store := memory.NewStore()

	return &RateLimiter{
		apiGlobal: limiter.New(store, apiGlobalRate),
		wsConnect: limiter.New(store, wsConnectRate),
	}, nil
}

// GlobalMiddleware returns a Gin middleware that enforces the global per-IP
// API rate limit.
func (rl *RateLimiter) GlobalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		lctx, err := rl.apiGlobal.Get(ctx, key)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// CheckWebSocketConnect checks if a new WebSocket connection from this IP
// should be allowed, before the upgrade handshake begins. Fails open if the
// store itself errors, matching the teacher's availability-over-strictness
// choice.
func (rl *RateLimiter) CheckWebSocketConnect(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	lctx, err := rl.wsConnect.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "ws rate limiter store failed", zap.Error(err))
		return true
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(lctx.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections from this IP"})
		return false
	}

	return true
}

// CheckWebSocketContext checks the IP-keyed connect limit outside of a gin
// request context, for use from tests or non-HTTP callers.
func (rl *RateLimiter) CheckWebSocketContext(ctx context.Context, ip string) error {
	lctx, err := rl.wsConnect.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "ws rate limiter store failed", zap.Error(err))
		return nil
	}
	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect").Inc()
		return fmt.Errorf("rate limit exceeded for %s", ip)
	}
	return nil
}
