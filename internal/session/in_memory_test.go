package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	sessionID, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	userID, err := store.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestInMemoryStore_UnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, err := store.Get(ctx, "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_ExpiredSessionIsEvicted(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	current := time.Now()
	store.now = func() time.Time { return current }

	sessionID, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	current = current.Add(time.Hour + time.Second)

	_, err = store.Get(ctx, sessionID)
	assert.ErrorIs(t, err, ErrExpired)

	// The expired entry is gone; a second read reports not found.
	_, err = store.Get(ctx, sessionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	sessionID, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, sessionID))

	_, err = store.Get(ctx, sessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent session is not an error.
	assert.NoError(t, store.Delete(ctx, sessionID))
}

func TestInMemoryStore_SessionIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sessionID, err := store.Create(ctx, "user-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, seen[sessionID])
		seen[sessionID] = true
	}
}
