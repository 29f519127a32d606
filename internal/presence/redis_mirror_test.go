package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMirror(t *testing.T) (*RedisMirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisMirror(client, zap.NewNop()), mr
}

func TestRedisMirror_OnlineOffline(t *testing.T) {
	mirror, mr := newTestMirror(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, mirror.MarkOnline(ctx, a))
	require.NoError(t, mirror.MarkOnline(ctx, b))
	require.NoError(t, mirror.MarkOnline(ctx, a))

	ids, err := mirror.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, ids)

	seen := time.Date(2026, 2, 3, 4, 5, 6, 700, time.UTC)
	require.NoError(t, mirror.MarkOffline(ctx, a, seen))

	ids, err = mirror.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, ids)

	lastSeen, err := mirror.LastSeen(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, lastSeen)
	assert.True(t, lastSeen.Equal(seen))
	assert.True(t, mr.TTL(lastSeenKey(a)) > 0)

	lastSeen, err = mirror.LastSeen(ctx, b)
	require.NoError(t, err)
	assert.Nil(t, lastSeen)
}

func TestRedisMirror_SkipsMalformedAndResets(t *testing.T) {
	mirror, mr := newTestMirror(t)
	ctx := context.Background()
	a := uuid.New()

	require.NoError(t, mirror.MarkOnline(ctx, a))
	_, err := mr.SAdd(onlineSetKey, "not-a-uuid")
	require.NoError(t, err)

	ids, err := mirror.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, ids)

	require.NoError(t, mirror.Reset(ctx))
	assert.False(t, mr.Exists(onlineSetKey))
}

func TestRedisMirror_Disabled(t *testing.T) {
	ctx := context.Background()
	for _, mirror := range []*RedisMirror{nil, NewRedisMirror(nil, zap.NewNop())} {
		assert.False(t, mirror.Enabled())
		assert.NoError(t, mirror.MarkOnline(ctx, uuid.New()))
		assert.NoError(t, mirror.MarkOffline(ctx, uuid.New(), time.Now()))
		ids, err := mirror.OnlineUserIDs(ctx)
		assert.NoError(t, err)
		assert.Empty(t, ids)
		seen, err := mirror.LastSeen(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, seen)
		assert.NoError(t, mirror.Reset(ctx))
	}
}
