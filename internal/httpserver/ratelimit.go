package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taskflow/pkg/metrics"
)

// RateLimiter is a Redis-backed fixed-window limiter keyed by client IP.
// When Redis is unavailable it fails open: availability beats limiting.
type RateLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	logger *zap.Logger
}

func NewRateLimiter(rdb *redis.Client, max int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, max: max, window: window, logger: logger}
}

// Middleware enforces the limit for the request's client IP.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "ratelimit:" + c.ClientIP()

		count, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			l.logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
				l.logger.Warn("failed to set rate limit window", zap.Error(err))
			}
		}

		if count > int64(l.max) {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
