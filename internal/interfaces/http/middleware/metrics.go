package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics is the subset of the Prometheus metrics the API records.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, statusCode int, d time.Duration)
	TrackInFlight(path string) func()
}

// Metrics records request counts and latency labelled by route template, so
// path parameters do not explode cardinality.
func Metrics(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		done := m.TrackInFlight(route)
		start := time.Now()
		c.Next()
		done()
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
