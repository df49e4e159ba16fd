package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"authstatus-go/internal/twitter"
)

// Provider is the Twitter-side surface the OAuth connect flow needs.
type Provider interface {
	AuthCodeURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, verifier string) (*twitter.Token, error)
	GetCurrentUser(ctx context.Context, accessToken string) (*twitter.User, error)
}

// OAuthManager handles the OAuth2 + PKCE connect flow with Twitter.
type OAuthManager struct {
	provider   Provider
	store      *TokenStore
	pkceStore  PKCEStore
	stateStore StateStore
	logger     zerolog.Logger
}

// NewOAuthManager creates a new OAuthManager instance.
func NewOAuthManager(provider Provider, store *TokenStore, pkceStore PKCEStore, stateStore StateStore, logger zerolog.Logger) *OAuthManager {
	return &OAuthManager{
		provider:   provider,
		store:      store,
		pkceStore:  pkceStore,
		stateStore: stateStore,
		logger:     logger,
	}
}

// GetAuthURL generates the Twitter authorization URL with PKCE for a user.
func (m *OAuthManager) GetAuthURL(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID cannot be empty")
	}

	verifier, err := m.pkceStore.GenerateCodeVerifier(128)
	if err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}

	challenge, err := m.pkceStore.GenerateCodeChallenge(verifier)
	if err != nil {
		return "", fmt.Errorf("failed to generate code challenge: %w", err)
	}

	state := uuid.NewString()
	if err := m.stateStore.StoreState(userID, state); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	if err := m.pkceStore.StoreVerifier(state, verifier); err != nil {
		return "", fmt.Errorf("failed to store verifier: %w", err)
	}

	return m.provider.AuthCodeURL(state, challenge), nil
}

// HandleCallback processes the OAuth callback: it validates the state,
// exchanges the code using the stored PKCE verifier, and persists the
// resulting credential plus an initial profile snapshot.
func (m *OAuthManager) HandleCallback(ctx context.Context, code, state, userID string) error {
	if code == "" {
		return fmt.Errorf("authorization code cannot be empty")
	}
	if state == "" {
		return fmt.Errorf("state parameter cannot be empty")
	}
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	if !m.stateStore.ValidateState(userID, state) {
		return fmt.Errorf("invalid state parameter")
	}
	defer m.stateStore.DeleteState(userID)

	verifier, err := m.pkceStore.GetVerifier(state)
	if err != nil {
		return fmt.Errorf("failed to get verifier: %w", err)
	}

	token, err := m.provider.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	tokens := Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		tokens.ExpiresAt = &expiry
	}
	if err := m.store.StoreTokens(ctx, userID, tokens); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}

	// Best effort: seed the cached profile so the first status check can
	// take the fast path. A failure here does not fail the connect.
	user, err := m.provider.GetCurrentUser(ctx, token.AccessToken)
	if err != nil {
		m.logger.Warn().Str("user_id", userID).Err(err).Msg("could not fetch profile after connect")
		return nil
	}
	if err := m.store.StoreUserProfile(ctx, userID, user.ID, user.Username); err != nil {
		m.logger.Warn().Str("user_id", userID).Err(err).Msg("could not store profile after connect")
	}

	return nil
}
