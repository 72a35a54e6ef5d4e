package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// RateLimit rejects requests once the shared token bucket is empty. A nil
// limiter admits everything.
func RateLimit(limiter resilience.Limiter, perSecond float64, logger logging.Logger) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	limit := strconv.FormatFloat(perSecond, 'f', -1, 64)
	return func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", limit)
		if !limiter.Allow() {
			logger.Warn("request rejected by rate limiter",
				logging.String("path", c.Request.URL.Path),
				logging.String("client_ip", c.ClientIP()),
			)
			c.Header("Retry-After", "1")
			abortWithError(c, http.StatusTooManyRequests, errors.ErrCodeTooManyRequests, "request rate limit exceeded")
			return
		}
		c.Next()
	}
}

// MaxBodyBytes caps the request body. A non-positive limit disables it.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			abortWithError(c, http.StatusRequestEntityTooLarge, errors.ErrCodeBadRequest, "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
