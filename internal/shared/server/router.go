package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"review-backend/internal/analyses"
	"review-backend/internal/settings"
	"review-backend/internal/shared/config"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/server/middleware"
	"review-backend/internal/shared/server/respond"
	"review-backend/internal/submissions"
)

// RouterDeps contains the handlers mounted under /api/v1.
type RouterDeps struct {
	Config             config.Config
	SettingsHandler    *settings.Handler
	AnalysesHandler    *analyses.Handler
	SubmissionsHandler *submissions.Handler
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
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
		middleware.CORS(deps.Config.CORSAllowOrigins),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor:     rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: deps.Config.HTTPRequestsPerSecond, Burst: deps.Config.HTTPBurst},
				"POLLING": {Rate: deps.Config.HTTPRequestsPerSecond * 4, Burst: deps.Config.HTTPBurst * 4},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": true})
	})
	api.GET("/ready", func(c *gin.Context) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				respond.Error(c, http.StatusServiceUnavailable, "not_ready", err.Error(), nil)
				return
			}
		}
		respond.OK(c, gin.H{"ok": true})
	})

	if deps.SettingsHandler != nil {
		deps.SettingsHandler.RegisterRoutes(api)
	}
	if deps.AnalysesHandler != nil {
		deps.AnalysesHandler.RegisterRoutes(api)
	}
	if deps.SubmissionsHandler != nil {
		deps.SubmissionsHandler.RegisterRoutes(api)
	}
	return r
}

// rateLimitGroup gives read endpoints, which the frontend polls, a larger budget.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet {
		return "POLLING"
	}
	return "DEFAULT"
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
