package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// LoggerMiddleware registra cada petición HTTP con su latencia y estado
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.RequestURI,
			"status", statusCode,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		}

		switch {
		case statusCode >= 500:
			log.Errorw("HTTP request", fields...)
		case statusCode >= 400:
			log.Warnw("HTTP request", fields...)
		default:
			log.Infow("HTTP request", fields...)
		}
	}
}
