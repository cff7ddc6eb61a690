package middleware

import (
	"net/http"
	"time"

	"gamecafe-wallet/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID carries the caller's correlation ID; one is generated
	// when absent.
	HeaderRequestID = "X-Request-ID"
	// HeaderActorID identifies the staff member performing the operation.
	// Identity is established upstream; this subsystem only records it.
	HeaderActorID = "X-Actor-ID"

	// Context keys
	CtxRequestID = "request_id"
	CtxCaller    = "caller"
)

// RequestMetadata builds the explicit CallerContext for every request and
// stores it in the gin context. Handlers pass the value onward; nothing in
// the wallet subsystem reaches back into ambient request state.
func RequestMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		caller := domain.CallerContext{
			RequestID: requestID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if raw := c.GetHeader(HeaderActorID); raw != "" {
			if actorID, err := uuid.Parse(raw); err == nil {
				caller.ActorID = &actorID
			}
		}

		c.Set(CtxRequestID, requestID)
		c.Set(CtxCaller, caller)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Next()
	}
}

// CallerFrom extracts the CallerContext set by RequestMetadata. Returns a
// system caller when the middleware did not run.
func CallerFrom(c *gin.Context) domain.CallerContext {
	if v, ok := c.Get(CtxCaller); ok {
		if caller, ok := v.(domain.CallerContext); ok {
			return caller
		}
	}
	return domain.SystemCaller()
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize limits the request body to maxBytes.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
