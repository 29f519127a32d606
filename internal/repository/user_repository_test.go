package repository

import (
	"context"
	"testing"
	"time"

	"chat-realtime-service/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Contacts(t *testing.T) {
	db := testdb.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	a := testdb.CreateUser(t, db, "Alice")
	b := testdb.CreateUser(t, db, "Bob")

	ok, err := repo.IsContact(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AddContacts(ctx, a.ID, b.ID))
	// idempotent
	require.NoError(t, repo.AddContacts(ctx, b.ID, a.ID))

	ok, err = repo.IsContact(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsContact(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserRepository_PushTokensBatched(t *testing.T) {
	db := testdb.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	b := testdb.CreateUser(t, db, "Bob")
	d := testdb.CreateUser(t, db, "Dan")
	e := testdb.CreateUser(t, db, "Eve")
	testdb.AddPushToken(t, db, b.ID, "token-b")
	testdb.AddPushToken(t, db, d.ID, "token-d1")
	testdb.AddPushToken(t, db, d.ID, "token-d2")
	testdb.AddPushToken(t, db, e.ID, "token-e")

	tokens, err := repo.PushTokens(ctx, b.ID, d.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"token-b", "token-d1", "token-d2"}, tokens)

	tokens, err = repo.PushTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestUserRepository_FindAndLastSeen(t *testing.T) {
	db := testdb.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	a := testdb.CreateUser(t, db, "Alice")

	seen := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, repo.UpdateLastSeen(ctx, a.ID, seen))

	loaded, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastSeen)
	assert.True(t, loaded.LastSeen.Equal(seen))
	assert.Equal(t, "Alice", loaded.FirstName)
}
