// Package ratelimit implements connection rate limiting backed by Redis or
// local memory.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimiter guards the WebSocket upgrade endpoint against connection storms.
type RateLimiter struct {
	wsIP    *limiter.Limiter
	store   limiter.Store
	enabled bool
}

// New creates a RateLimiter. A nil redisClient selects the in-memory store.
// enabled=false turns every check into a pass-through (development mode).
func New(wsIPRate string, redisClient *redis.Client, enabled bool) (*RateLimiter, error) {
	rate, err := limiter.NewRateFromFormatted(wsIPRate)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	if !enabled {
		// Pass-through mode: no store. The memory store spawns a cleaner
		// goroutine with no way to stop it, so it must not be built here.
		return &RateLimiter{enabled: false}, nil
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:broker:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "✅ Rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "⚠️  Rate limiter using Memory store (Redis not configured)")
	}

	return &RateLimiter{
		wsIP:    limiter.New(store, rate),
		store:   store,
		enabled: enabled,
	}, nil
}

// CheckWebSocket checks whether a WebSocket handshake from this IP is allowed.
// Returns false after writing the 429 response when the limit is exceeded.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	if rl == nil || !rl.enabled {
		return true
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()

	res, err := rl.wsIP.Get(ctx, ip)
	if err != nil {
		// Fail open: availability beats strictness when the store is down.
		logging.Error(ctx, "WS rate limiter store failed", zap.Error(err))
		return true
	}

	if res.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(res.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}

	return true
}
