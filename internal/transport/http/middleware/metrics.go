package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"catalog-admin/internal/core/metrics"
	resp "catalog-admin/internal/transport/http/response"
)

// Metrics labels requests with the envelope code when a handler set one, since the HTTP
// status is 200 for most failures.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		if v, ok := c.Get(resp.KeyCode); ok {
			if n, ok := v.(int); ok {
				code = strconv.Itoa(n)
			}
		}
		metrics.HTTPRequests.WithLabelValues(path, c.Request.Method, code).Inc()
		metrics.HTTPLatency.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
