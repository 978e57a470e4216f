package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/metrics"
	"sentiment-api/internal/shared/telemetry"
)

// SentimentKey is the context key handlers set so the access log carries the
// classification outcome.
const SentimentKey = "sentiment"

// Logging emits a structured log per request and records request latency.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		durationMs := float64(latency.Microseconds()) / 1000.0

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, status, durationMs)

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       route,
			"status":      status,
			"duration_ms": durationMs,
			"sentiment":   c.GetString(SentimentKey),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
