package service

import (
	"context"
	"testing"
	"time"

	"chat-realtime-service/internal/model"
	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/realtime"
	"chat-realtime-service/internal/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnect_BroadcastsAndFlushes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := testdb.CreateUser(t, h.db, "Alice")
	bob := testdb.CreateUser(t, h.db, "Bob")
	h.connect(alice.ID, "a1")

	pending := seedMessage(t, h, alice.ID, bob.ID, model.MessageStatusSent)

	h.presence.Connect(ctx, bob.ID, "b1")

	assert.True(t, h.presence.IsOnline(bob.ID))
	online := h.emitter.broadcasts(realtime.EventOnlineUsers)
	require.Len(t, online, 1)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, online[0].([]uuid.UUID))

	stored, err := h.messageRepo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, stored.Status)

	updates := h.emitter.received("a1", realtime.EventMessageStatusUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, model.MessageStatusDelivered, updates[0].(realtime.StatusUpdate).Status)
}

func TestDisconnect_LastConnectionStampsLastSeen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bob := testdb.CreateUser(t, h.db, "Bob")

	h.presence.Connect(ctx, bob.ID, "b1")
	h.presence.Connect(ctx, bob.ID, "b2")
	h.emitter.reset()

	h.presence.Disconnect(ctx, bob.ID, "b1")
	assert.Empty(t, h.emitter.broadcasts(realtime.EventUserLastSeen))
	require.Len(t, h.emitter.broadcasts(realtime.EventOnlineUsers), 1)

	h.presence.Disconnect(ctx, bob.ID, "b2")
	lastSeen := h.emitter.broadcasts(realtime.EventUserLastSeen)
	require.Len(t, lastSeen, 1)
	assert.Equal(t, bob.ID, lastSeen[0].(realtime.LastSeen).UserID)

	online := h.emitter.broadcasts(realtime.EventOnlineUsers)
	require.Len(t, online, 2)
	assert.Empty(t, online[1].([]uuid.UUID))

	stored, err := h.userRepo.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSeen)

	seen, err := h.presence.LastSeen(ctx, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.Equal(*stored.LastSeen))
}

func TestIdentify(t *testing.T) {
	h := newHarness(t)
	alice := testdb.CreateUser(t, h.db, "Alice")

	summary := h.presence.Identify(context.Background(), alice.ID)
	assert.Equal(t, "Alice", summary.FirstName)

	unknown := uuid.New()
	assert.Equal(t, realtime.UserSummary{ID: unknown}, h.presence.Identify(context.Background(), unknown))
}

func TestPresence_RedisMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mirror := presence.NewRedisMirror(rdb, zap.NewNop())

	svc := NewPresenceService(h.userRepo, h.registry, mirror, h.status, h.emitter, zap.NewNop(), nil)
	ps := svc.(*presenceService)
	fixed := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	ps.now = func() time.Time { return fixed }

	alice := testdb.CreateUser(t, h.db, "Alice")
	remote := uuid.New()
	require.NoError(t, mirror.MarkOnline(ctx, remote))

	svc.Connect(ctx, alice.ID, "a1")
	ids, err := svc.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, remote}, ids, "mirror spans processes")

	svc.Disconnect(ctx, alice.ID, "a1")
	ids, err = svc.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{remote}, ids)

	seen, err := svc.LastSeen(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.Equal(fixed))
}

func TestPresence_OnlineUserIDsWithoutMirror(t *testing.T) {
	h := newHarness(t)
	a := uuid.New()
	h.connect(a, "a1")

	ids, err := h.presence.OnlineUserIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, ids)
}
