package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat-realtime-service/internal/model"
	"chat-realtime-service/internal/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCall(t *testing.T, repo CallRepository, startedAt time.Time) *model.Call {
	t.Helper()
	call := &model.Call{
		CallerID:   uuid.New(),
		ReceiverID: uuid.New(),
		CallType:   model.CallTypeVideo,
		StartedAt:  startedAt,
	}
	require.NoError(t, repo.Create(context.Background(), call))
	return call
}

func TestCallRepository_FindByEitherReference(t *testing.T) {
	repo := NewCallRepository(testdb.New(t))
	ctx := context.Background()
	call := newCall(t, repo, time.Now().UTC())

	assert.NotEmpty(t, call.CallKey)
	assert.Equal(t, model.CallStatusOngoing, call.Status)

	byID, err := repo.Find(ctx, model.InternalCallRef(call.ID))
	require.NoError(t, err)
	assert.Equal(t, call.CallKey, byID.CallKey)

	byKey, err := repo.Find(ctx, model.ExternalCallRef(call.CallKey))
	require.NoError(t, err)
	assert.Equal(t, call.ID, byKey.ID)

	_, err = repo.Find(ctx, model.ExternalCallRef("missing"))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = repo.Find(ctx, model.CallRef{})
	assert.Error(t, err)
}

func TestCallRepository_SetConnectedAtFirstWins(t *testing.T) {
	repo := NewCallRepository(testdb.New(t))
	ctx := context.Background()
	call := newCall(t, repo, time.Now().UTC())

	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Second)

	ok, err := repo.SetConnectedAt(ctx, call.ID, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetConnectedAt(ctx, call.ID, second)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.Find(ctx, model.InternalCallRef(call.ID))
	require.NoError(t, err)
	require.NotNil(t, reloaded.ConnectedAt)
	assert.True(t, reloaded.ConnectedAt.Equal(first))
}

func TestCallRepository_TerminalStatesAreFinal(t *testing.T) {
	repo := NewCallRepository(testdb.New(t))
	ctx := context.Background()
	now := time.Now().UTC()
	call := newCall(t, repo, now)

	ok, err := repo.Reject(ctx, call.ID, now, call.ReceiverID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Complete(ctx, call.ID, now.Add(time.Minute), 60, call.CallerID)
	require.NoError(t, err)
	assert.False(t, ok, "complete must not overwrite a rejection")

	ok, err = repo.SetConnectedAt(ctx, call.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.Find(ctx, model.InternalCallRef(call.ID))
	require.NoError(t, err)
	assert.Equal(t, model.CallStatusRejected, reloaded.Status)
	assert.Equal(t, 0, reloaded.Duration)
}

func TestCallRepository_StaleUnansweredAndMissed(t *testing.T) {
	repo := NewCallRepository(testdb.New(t))
	ctx := context.Background()
	now := time.Now().UTC()

	stale := newCall(t, repo, now.Add(-5*time.Minute))
	fresh := newCall(t, repo, now)
	answered := newCall(t, repo, now.Add(-5*time.Minute))
	_, err := repo.SetConnectedAt(ctx, answered.ID, now.Add(-4*time.Minute))
	require.NoError(t, err)

	calls, err := repo.FindStaleUnanswered(ctx, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, stale.ID, calls[0].ID)

	ok, err := repo.MarkMissed(ctx, stale.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkMissed(ctx, stale.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkMissed(ctx, answered.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "connected calls are never missed")

	reloaded, err := repo.Find(ctx, model.InternalCallRef(fresh.ID))
	require.NoError(t, err)
	assert.Equal(t, model.CallStatusOngoing, reloaded.Status)
}
