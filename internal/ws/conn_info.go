package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"chat-core/internal/observability"
)

// ConnInfo describes where a session came from. It is attached to lifecycle
// events on the event stream.
type ConnInfo struct {
	ConnID      string
	UserID      int
	IP          string
	UserAgent   string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, userID int, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		IP:          observability.IPFromRequest(r),
		UserAgent:   r.UserAgent(),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}
