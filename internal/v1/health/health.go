// Package health exposes the HTTP health surface: the plain-text root probe
// plus Kubernetes-style liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Checker serves the health endpoints. The redis client is optional; without
// one, readiness reports ready unconditionally.
type Checker struct {
	redis *redis.Client
}

func NewChecker(redisClient *redis.Client) *Checker {
	return &Checker{redis: redisClient}
}

// Root answers the plain probe used by host agents to detect the broker.
func (c *Checker) Root(ctx *gin.Context) {
	ctx.String(http.StatusOK, "OK")
}

// Live reports process liveness.
func (c *Checker) Live(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready reports whether the broker can serve traffic. With redis configured,
// the backing store must answer a ping.
func (c *Checker) Ready(ctx *gin.Context) {
	if c.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		if err := c.redis.Ping(pingCtx).Err(); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "redis unreachable",
			})
			return
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
