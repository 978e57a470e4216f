package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/sentiment"
	"sentiment-api/internal/services/health"
	"sentiment-api/internal/shared/config"
	"sentiment-api/internal/shared/metrics"
	"sentiment-api/internal/shared/server/middleware"
	"sentiment-api/internal/shared/server/respond"
	"sentiment-api/internal/shared/telemetry"
	"sentiment-api/internal/tally"
)

const probesGroup = "PROBES"

// LambdaSourceIPHeader carries the API Gateway source IP into the router.
// It is only honoured when the engine's TrustedPlatform names it.
const LambdaSourceIPHeader = "X-Lambda-Source-Ip"

// RouterDeps carries the handlers and shared infrastructure the router wires.
type RouterDeps struct {
	Config           config.Config
	SentimentHandler *sentiment.Handler
	TallyHandler     *tally.Handler
	HealthHandler    *health.Handler
	Limiter          middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// Forwarding headers are ignored unless the peer is a configured proxy;
	// the rate limiter keys on ClientIP.
	if err := r.SetTrustedProxies(deps.Config.TrustedProxies); err != nil {
		telemetry.Warn("router.trusted_proxies_invalid", map[string]any{"error": err})
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	if deps.Config.RateLimitEnabled {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: deps.Config.RateLimitRate, Burst: deps.Config.RateLimitBurst},
			},
			// Probes and scrapes have no rule and so are never limited.
			GroupFor: func(c *gin.Context) string {
				switch c.FullPath() {
				case "/api/health", "/metrics":
					return probesGroup
				}
				return ""
			},
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "route not found", nil)
	})
	r.NoMethod(func(c *gin.Context) {
		respond.Error(c, http.StatusMethodNotAllowed, respond.CodeMethodNotAllowed, "method not allowed", nil)
	})

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	if deps.HealthHandler != nil {
		deps.HealthHandler.RegisterRoutes(api)
	}
	if deps.SentimentHandler != nil {
		deps.SentimentHandler.RegisterRoutes(api)
	}
	if deps.TallyHandler != nil {
		deps.TallyHandler.RegisterRoutes(api)
	}

	return r
}

// StampSourceIP sets LambdaSourceIPHeader to sourceIP in API Gateway headers,
// dropping any caller-supplied value under any casing.
func StampSourceIP(headers map[string]string, sourceIP string) map[string]string {
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	for k := range headers {
		if strings.EqualFold(k, LambdaSourceIPHeader) {
			delete(headers, k)
		}
	}
	if sourceIP = strings.TrimSpace(sourceIP); sourceIP != "" {
		headers[strings.ToLower(LambdaSourceIPHeader)] = sourceIP
	}
	return headers
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
