package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/ratelimit"
)

// RateLimit rejects requests over limit per window, keyed by client IP.
// name distinguishes limiter buckets so the login limit and the general
// API limit count independently for the same IP.
func RateLimit(limiter *ratelimit.Limiter, name string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		identifier := name + ":" + c.ClientIP()

		allowed, err := limiter.Allow(c.Request.Context(), identifier, limit, window)
		if err != nil {
			// The limiter fails open itself; an error here is unexpected.
			logger.Error("rate limiter failure", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			logger.Info("rate limit exceeded",
				zap.String("bucket", name),
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
