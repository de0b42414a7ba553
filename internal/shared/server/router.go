package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsec-backend/internal/analyses"
	"docsec-backend/internal/documents"
	"docsec-backend/internal/services/health"
	"docsec-backend/internal/shared/config"
	"docsec-backend/internal/shared/metrics"
	"docsec-backend/internal/shared/server/middleware"
	"docsec-backend/internal/shared/server/respond"
)

const analyzeRoute = "/api/v1/documents/:id/analyze"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	AnalysisHandler *analyses.Handler
	Health          *health.Service
	Limiter         *middleware.RateLimiter
	RateLimits      map[string]middleware.RateLimitRule
}

// DefaultRateLimits throttles analysis calls harder than everything else.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		"DEFAULT": {Rate: 5, Burst: 20},
		"ANALYZE": {Rate: 0.2, Burst: 5},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits()
	}
	secured := api.Group("")
	secured.Use(
		middleware.Identity(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:   rules,
			Limiter: deps.Limiter,
			GroupFor: func(c *gin.Context) string {
				if c.FullPath() == analyzeRoute {
					return "ANALYZE"
				}
				return "DEFAULT"
			},
		}),
	)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(secured)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(secured)
	}

	return r
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
