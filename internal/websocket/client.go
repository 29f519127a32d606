package websocket

import (
	"sync"
	"time"

	"chat-realtime-service/internal/realtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one socket. A client with a nil userID is a spectator: it
// receives broadcasts but is never bound in the presence registry.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	// resolved once on connect for typing and call events
	summary realtime.UserSummary

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, userID uuid.UUID, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, bufferSize),
		userID:  userID,
		summary: realtime.UserSummary{ID: userID},
	}
}

func (c *Client) bound() bool { return c.userID != uuid.Nil }

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump hands every frame to handle in arrival order and returns when the
// socket fails or closes.
func (c *Client) readPump(logger *zap.Logger, handle func(frame []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.String("connId", c.id), zap.Error(err))
			}
			return
		}
		handle(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
