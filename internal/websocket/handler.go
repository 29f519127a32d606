package websocket

import (
	"context"
	"net/http"
	"time"

	"chat-realtime-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const lifecycleTimeout = 10 * time.Second

type Handler struct {
	hub        *Hub
	presence   service.PresenceService
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	bufferSize int
	logger     *zap.Logger
}

func NewHandler(
	hub *Hub,
	presence service.PresenceService,
	dispatcher *Dispatcher,
	allowedOrigins []string,
	bufferSize int,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		hub:        hub,
		presence:   presence,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// checkOrigin accepts everything when the list is empty or contains "*".
func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades GET {base}/ws?userId=<uuid>. A missing or unparsable
// userId yields an unbound connection rather than a rejected handshake.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := uuid.Nil
	if raw := c.Query("userId"); raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = parsed
		} else {
			h.logger.Warn("Ignoring invalid userId on handshake", zap.String("userId", raw))
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(conn, userID, h.bufferSize)
	h.hub.register(client)
	defer h.hub.sessionDone()
	go client.writePump()

	if client.bound() {
		ctx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		client.summary = h.presence.Identify(ctx, userID)
		h.presence.Connect(ctx, userID, client.id)
		cancel()
	}

	client.readPump(h.logger, func(frame []byte) {
		h.dispatcher.Dispatch(client, frame)
	})

	h.hub.unregister(client)
	conn.Close()

	if client.bound() {
		ctx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		h.presence.Disconnect(ctx, userID, client.id)
		cancel()
	}
}
