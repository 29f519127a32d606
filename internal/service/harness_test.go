package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"chat-realtime-service/internal/client"
	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/push"
	"chat-realtime-service/internal/repository"
	"chat-realtime-service/internal/testdb"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type emission struct {
	connIDs []string
	event   string
	payload interface{}
}

type recordingEmitter struct {
	mu        sync.Mutex
	targeted  []emission
	broadcast []emission
}

func (e *recordingEmitter) EmitTo(connIDs []string, event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.targeted = append(e.targeted, emission{connIDs: append([]string(nil), connIDs...), event: event, payload: payload})
}

func (e *recordingEmitter) EmitAll(event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcast = append(e.broadcast, emission{event: event, payload: payload})
}

// received returns the payloads of event delivered to connID, in order.
func (e *recordingEmitter) received(connID, event string) []interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []interface{}
	for _, em := range e.targeted {
		if em.event != event {
			continue
		}
		for _, id := range em.connIDs {
			if id == connID {
				out = append(out, em.payload)
			}
		}
	}
	return out
}

// all returns every event name delivered to connID.
func (e *recordingEmitter) all(connID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, em := range e.targeted {
		for _, id := range em.connIDs {
			if id == connID {
				out = append(out, em.event)
			}
		}
	}
	return out
}

func (e *recordingEmitter) broadcasts(event string) []interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []interface{}
	for _, em := range e.broadcast {
		if em.event == event {
			out = append(out, em.payload)
		}
	}
	return out
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.targeted = nil
	e.broadcast = nil
}

type recordingPushClient struct {
	mu   sync.Mutex
	sent []client.PushMessage
}

func (c *recordingPushClient) SendMulticast(ctx context.Context, msg client.PushMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

type harness struct {
	t          *testing.T
	db         *gorm.DB
	registry   *presence.MemoryRegistry
	emitter    *recordingEmitter
	pushes     *recordingPushClient
	dispatcher *push.Dispatcher

	messageRepo repository.MessageRepository
	callRepo    repository.CallRepository
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository

	delivery DeliveryService
	status   StatusService
	typing   TypingService
	calls    *callService
	presence PresenceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testdb.New(t)
	logger := zap.NewNop()

	h := &harness{
		t:           t,
		db:          db,
		registry:    presence.NewMemoryRegistry(),
		emitter:     &recordingEmitter{},
		pushes:      &recordingPushClient{},
		messageRepo: repository.NewMessageRepository(db),
		callRepo:    repository.NewCallRepository(db),
		channelRepo: repository.NewChannelRepository(db),
		userRepo:    repository.NewUserRepository(db),
	}
	h.dispatcher = push.NewDispatcher(h.pushes, time.Second, logger, nil)

	h.delivery = NewDeliveryService(h.messageRepo, h.channelRepo, h.userRepo, h.registry, h.emitter, h.dispatcher, logger, nil)
	h.status = NewStatusService(h.messageRepo, h.registry, h.emitter, logger)
	h.typing = NewTypingService(h.channelRepo, h.registry, h.emitter)
	h.calls = NewCallService(h.callRepo, h.messageRepo, h.userRepo, h.registry, h.emitter, h.dispatcher, logger, nil).(*callService)
	h.presence = NewPresenceService(h.userRepo, h.registry, nil, h.status, h.emitter, logger, nil)
	return h
}

// connect binds conns for the user without going through the lifecycle.
func (h *harness) connect(userID uuid.UUID, connIDs ...string) {
	for _, id := range connIDs {
		h.registry.Bind(userID, id)
	}
}

// pushed waits for in-flight dispatches and returns everything sent.
func (h *harness) pushed() []client.PushMessage {
	h.dispatcher.Wait()
	h.pushes.mu.Lock()
	defer h.pushes.mu.Unlock()
	return append([]client.PushMessage(nil), h.pushes.sent...)
}

func (h *harness) setClock(t time.Time) {
	h.calls.now = func() time.Time { return t }
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
