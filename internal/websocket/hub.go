// Package websocket owns the live sockets and routes their inbound frames to
// the services.
package websocket

import (
	"sync"

	"chat-realtime-service/internal/metrics"
	"chat-realtime-service/internal/realtime"

	"go.uber.org/zap"
)

// Hub indexes live clients by connection id and implements service.Emitter.
type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex
	// one per ServeWS call, released after its disconnect path has run
	sessions sync.WaitGroup
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		metrics: m,
	}
}

func (h *Hub) register(client *Client) {
	h.sessions.Add(1)
	h.clientsMu.Lock()
	h.clients[client.id] = client
	h.clientsMu.Unlock()

	h.metrics.RecordWebSocketConnection()
	h.logger.Info("Client registered",
		zap.String("connId", client.id),
		zap.String("userId", client.userID.String()),
	)
}

func (h *Hub) unregister(client *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[client.id]
	if ok {
		delete(h.clients, client.id)
	}
	h.clientsMu.Unlock()

	if !ok {
		return
	}
	client.closeSend()
	h.metrics.RecordWebSocketDisconnection()
	h.logger.Info("Client unregistered",
		zap.String("connId", client.id),
		zap.String("userId", client.userID.String()),
	)
}

func (h *Hub) EmitTo(connIDs []string, event string, payload interface{}) {
	if len(connIDs) == 0 {
		return
	}
	frame, err := realtime.Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, id := range connIDs {
		if client, ok := h.clients[id]; ok {
			h.deliver(client, event, frame)
		}
	}
}

func (h *Hub) EmitAll(event string, payload interface{}) {
	frame, err := realtime.Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, client := range h.clients {
		h.deliver(client, event, frame)
	}
}

// deliver never blocks; a client whose buffer is full misses the frame.
func (h *Hub) deliver(client *Client, event string, frame []byte) {
	select {
	case client.send <- frame:
	default:
		h.logger.Warn("Dropping frame for slow client",
			zap.String("connId", client.id),
			zap.String("event", event),
		)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every socket. The read pumps then run their normal
// disconnect path; Wait blocks until all of them have finished.
func (h *Hub) Shutdown() {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) sessionDone() {
	h.sessions.Done()
}

// Wait blocks until every registered connection has been torn down,
// including its presence bookkeeping.
func (h *Hub) Wait() {
	h.sessions.Wait()
}
