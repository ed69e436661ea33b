package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/service"
)

// unobserved routes are probes, scrapes and long-lived websocket streams.
var unobserved = map[string]struct{}{
	"/health":           {},
	"/ready":            {},
	"/metrics":          {},
	"/metrics/snapshot": {},
}

// Metrics records the duration and outcome of every routed request, labelled
// by route template so ids never become label values.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if metrics == nil || skipMetrics(route) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func skipMetrics(route string) bool {
	if _, ok := unobserved[route]; ok {
		return true
	}
	return strings.HasSuffix(route, "/events/ws")
}
