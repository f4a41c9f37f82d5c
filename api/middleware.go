package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerActorID        = "X-Actor-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// RequestLogger writes one zap line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if actor := c.GetHeader(headerActorID); actor != "" {
			fields = append(fields, zap.String("actor_id", actor))
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// actorID is supplied by the caller; this service does not authenticate it.
func actorID(c *gin.Context) *string {
	actor := strings.TrimSpace(c.GetHeader(headerActorID))
	if actor == "" {
		return nil
	}
	return &actor
}

func idempotencyKey(c *gin.Context, fromBody string) string {
	if key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey)); key != "" {
		return key
	}
	return fromBody
}
