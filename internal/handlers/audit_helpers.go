package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-core/internal/observability"
	"chat-core/internal/telemetry"
)

// requestIDFromContext returns the id set by observability.RequestIDMiddleware,
// minting one for routes mounted without it.
func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(observability.RequestIDContextKey); id != "" {
		return id
	}
	requestID := c.GetHeader(observability.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDContextKey, requestID)
	return requestID
}

// userIDFromContext prefers the authenticated id and falls back to the
// X-User-ID header for unauthenticated debug routes. 0 means anonymous.
func userIDFromContext(c *gin.Context) int {
	if id := c.GetInt("userID"); id != 0 {
		return id
	}
	if header := c.GetHeader("X-User-ID"); header != "" {
		if parsed, err := strconv.Atoi(header); err == nil {
			return parsed
		}
	}
	return 0
}

func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, action, text string) {
	if audit == nil {
		return
	}
	audit.Emit(c.Request.Context(), level, action, text, requestIDFromContext(c), userIDFromContext(c))
}
