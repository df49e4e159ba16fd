package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authstatus-go/internal/twitter"
)

func newTestRefresher(t *testing.T, provider TokenSource) (*Refresher, *TokenStore) {
	t.Helper()
	store := NewTokenStore(newMemStorage(), testEncryptionKey)
	return NewRefresher(store, provider, 5*time.Minute, zerolog.Nop()), store
}

func TestRefresher_NoCredential(t *testing.T) {
	ctx := context.Background()
	source := &mockTokenSource{}
	refresher, _ := newTestRefresher(t, source)

	tokens, err := refresher.RefreshIfNeeded(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, tokens)
	assert.Equal(t, 0, source.callCount())
}

func TestRefresher_FarFromExpiry_DoesNotCallProvider(t *testing.T) {
	ctx := context.Background()
	source := &mockTokenSource{}
	refresher, store := newTestRefresher(t, source)

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, store.StoreTokens(ctx, "user-1", Tokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    &expiry,
	}))

	tokens, err := refresher.RefreshIfNeeded(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, 0, source.callCount(), "refresh must not hit the provider when expiry is far away")
}

func TestRefresher_NoExpiry_DoesNotCallProvider(t *testing.T) {
	ctx := context.Background()
	source := &mockTokenSource{}
	refresher, store := newTestRefresher(t, source)

	require.NoError(t, store.StoreTokens(ctx, "user-1", Tokens{AccessToken: "access"}))

	tokens, err := refresher.RefreshIfNeeded(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, 0, source.callCount())
}

func TestRefresher_NearExpiry_RefreshesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	newExpiry := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	source := &mockTokenSource{
		token: &twitter.Token{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			Expiry:       newExpiry,
		},
	}
	refresher, store := newTestRefresher(t, source)

	soon := time.Now().Add(time.Minute)
	require.NoError(t, store.StoreTokens(ctx, "user-1", Tokens{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    &soon,
	}))

	tokens, err := refresher.RefreshIfNeeded(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, 1, source.callCount())

	// The refreshed tokens were persisted.
	stored, err := store.GetTokens(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "new-access", stored.AccessToken)
	assert.Equal(t, "new-refresh", stored.RefreshToken)
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, stored.ExpiresAt.Equal(newExpiry))
}

func TestRefresher_NearExpiry_NoRefreshToken_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	source := &mockTokenSource{}
	refresher, store := newTestRefresher(t, source)

	soon := time.Now().Add(time.Minute)
	require.NoError(t, store.StoreTokens(ctx, "user-1", Tokens{
		AccessToken: "access",
		ExpiresAt:   &soon,
	}))

	tokens, err := refresher.RefreshIfNeeded(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, 0, source.callCount())
}

func TestRefresher_ProviderRejection_RemovesCredential(t *testing.T) {
	ctx := context.Background()
	source := &mockTokenSource{
		err: &twitter.APIError{Kind: twitter.KindUnauthorized, StatusCode: http.StatusUnauthorized},
	}
	refresher, store := newTestRefresher(t, source)

	soon := time.Now().Add(time.Minute)
	require.NoError(t, store.StoreTokens(ctx, "user-1", Tokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    &soon,
	}))

	tokens, err := refresher.RefreshIfNeeded(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, tokens)

	stored, err := store.GetTokens(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, stored, "a rejected credential must be deleted")
}

func TestRefresher_ProviderRateLimited_KeepsCredential(t *testing.T) {
	ctx := context.Background()
	source := &mockTokenSource{
		err: &twitter.APIError{Kind: twitter.KindRateLimited, StatusCode: http.StatusTooManyRequests},
	}
	refresher, store := newTestRefresher(t, source)

	soon := time.Now().Add(time.Minute)
	require.NoError(t, store.StoreTokens(ctx, "user-1", Tokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    &soon,
	}))

	tokens, err := refresher.RefreshIfNeeded(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "access", tokens.AccessToken)

	stored, err := store.GetTokens(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, stored, "throttling must not evict the credential")
}

func TestRefresher_TransportError_PropagatesWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	source := &mockTokenSource{err: errors.New("dial tcp: connection refused")}
	refresher, store := newTestRefresher(t, source)

	soon := time.Now().Add(time.Minute)
	require.NoError(t, store.StoreTokens(ctx, "user-1", Tokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    &soon,
	}))

	_, err := refresher.RefreshIfNeeded(ctx, "user-1")
	assert.Error(t, err)

	stored, err := store.GetTokens(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, stored, "transient failures must not evict the credential")
}
