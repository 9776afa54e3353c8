package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"review-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request. Route parameters identifying
// the student and document are copied into the line.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
		}
		if userID := c.Param("userId"); userID != "" {
			fields["user_id"] = userID
		}
		if fileName := c.Param("fileName"); fileName != "" {
			fields["file_name"] = fileName
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		telemetry.Info("request.complete", fields)
	}
}
