package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/telemetry"
)

// DebugDeps feeds the debug routes. Any field may be zero.
type DebugDeps struct {
	Audit *telemetry.AuditEmitter
	// Sessions reports live websocket sessions on this instance.
	Sessions func() int
	// Publishers maps a publisher name to its mode ("amqp" or "noop").
	Publishers map[string]string
}

// RegisterDebugRoutes wires debug-only endpoints when enabled.
func RegisterDebugRoutes(router *gin.Engine, deps DebugDeps, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if deps.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, deps.Audit, "INFO", "debug.audit_test", "audit test")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestIDFromContext(c)})
	})

	router.GET("/debug/status", func(c *gin.Context) {
		sessions := 0
		if deps.Sessions != nil {
			sessions = deps.Sessions()
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions, "publishers": deps.Publishers})
	})
}
