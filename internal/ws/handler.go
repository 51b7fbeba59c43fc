package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-core/internal/auth"
	"chat-core/internal/middleware"
	"chat-core/internal/models"
	"chat-core/internal/observability"
)

// MessageService is the message path used by inbound frames.
type MessageService interface {
	CreateMessage(ctx context.Context, in models.NewMessage, senderID int) (models.MessageView, error)
	MarkRead(ctx context.Context, receiverID, senderID int) (int, error)
}

// RoomService answers the membership questions of the push transport.
type RoomService interface {
	RoomIDsForUser(ctx context.Context, userID int) ([]int, error)
	IsMember(ctx context.Context, roomID, userID int) (bool, error)
}

// Handler upgrades authenticated requests to websocket sessions.
type Handler struct {
	registry   *Registry
	router     *Router
	validator  middleware.TokenValidator
	profiles   middleware.ProfileSyncer
	messages   MessageService
	rooms      RoomService
	sendBuffer int
}

func NewHandler(registry *Registry, router *Router, validator middleware.TokenValidator, profiles middleware.ProfileSyncer, messages MessageService, rooms RoomService, sendBuffer int) *Handler {
	return &Handler{
		registry:   registry,
		router:     router,
		validator:  validator,
		profiles:   profiles,
		messages:   messages,
		rooms:      rooms,
		sendBuffer: sendBuffer,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle validates the token, upgrades, and serves the session until the
// connection closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.validator.ValidateToken(ctx, auth.BearerToken(c.Request))
	if err != nil {
		span.SetStatus(codes.Error, "unauthorized")
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	middleware.SyncProfile(ctx, h.profiles, identity)

	span.SetAttributes(attribute.Int("user.id", identity.UserID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		return
	}

	info := newConnInfo(c.Request, identity.UserID, span.SpanContext().TraceID().String())
	session := NewSession(identity.UserID, info, h.sendBuffer)
	session.SetUsername(identity.Username)
	h.registry.Register(session)
	h.subscribeRooms(ctx, session)
	span.End()

	observability.SetWSSessions(h.registry.Count())
	publishLifecycle(ctx, "ws_connect", session, "")

	client := &client{conn: conn, session: session, handler: h}
	go client.writePump()
	reason := client.readPump(ctx)

	h.disconnect(ctx, session, reason)
}

func (h *Handler) subscribeRooms(ctx context.Context, s *Session) {
	roomIDs, err := h.rooms.RoomIDsForUser(ctx, s.UserID)
	if err != nil {
		h.sendTo(s, errorEvent(err))
		return
	}
	for _, id := range roomIDs {
		h.registry.Subscribe(s, id)
	}
}

func (h *Handler) disconnect(ctx context.Context, s *Session, reason string) {
	joined, username := s.Joined()
	h.registry.Unregister(s)
	observability.SetWSSessions(h.registry.Count())
	if joined {
		h.router.BroadcastPresence(ctx, models.EventLeave, s.UserID, username)
	}
	publishLifecycle(ctx, "ws_disconnect", s, reason)
}

func (h *Handler) sendTo(s *Session, event models.Event) {
	if payload := encodeEvent(event); payload != nil {
		_ = s.Send(payload)
		observability.IncWSEvent("outbound", string(event.Type))
	}
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)
