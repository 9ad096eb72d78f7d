package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/pkg/metrics"
)

// Metrics observes per-route request latency, labelled by method, route
// template and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		metrics.APILatency.WithLabelValues(
			c.Request.Method,
			routeTemplate(c),
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// routeTemplate prefers the registered pattern ("/api/analytics/:period")
// over the raw path to keep label cardinality bounded. Unmatched requests
// fall back to the literal path.
func routeTemplate(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
