package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"authstatus-go/internal/metrics"
	"authstatus-go/internal/twitter"
)

// DefaultRefreshThreshold is how close to expiry a token must be before a
// refresh is attempted.
const DefaultRefreshThreshold = 5 * time.Minute

// TokenSource is the provider-side refresh capability the Refresher needs.
type TokenSource interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*twitter.Token, error)
}

// Refresher keeps a credential usable by refreshing proactively and evicting
// it when the provider rejects the refresh token.
type Refresher struct {
	store     *TokenStore
	provider  TokenSource
	threshold time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRefresher creates a Refresher. A non-positive threshold falls back to
// DefaultRefreshThreshold.
func NewRefresher(store *TokenStore, provider TokenSource, threshold time.Duration, logger zerolog.Logger) *Refresher {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	return &Refresher{
		store:     store,
		provider:  provider,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// RefreshIfNeeded returns usable tokens for a user, refreshing first when the
// stored ones are near expiry. It returns (nil, nil) when no credential
// exists, including the case where a rejected refresh just evicted it.
//
// There is no mutual exclusion here: two concurrent calls for the same user
// may both hit the provider. Callers that care use the status checker's
// single-flight path.
func (r *Refresher) RefreshIfNeeded(ctx context.Context, userID string) (*Tokens, error) {
	tokens, err := r.store.GetTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, nil
	}

	if !r.needsRefresh(tokens) {
		return tokens, nil
	}

	if tokens.RefreshToken == "" {
		// Nothing to refresh with. Hand back what we have, possibly already
		// expired; the caller decides whether that still counts as valid.
		r.logger.Debug().Str("user_id", userID).Msg("token near expiry but no refresh token stored")
		return tokens, nil
	}

	refreshed, err := r.provider.RefreshAccessToken(ctx, tokens.RefreshToken)
	if err != nil {
		return r.handleRefreshFailure(ctx, userID, tokens, err)
	}

	newTokens := Tokens{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
	}
	if !refreshed.Expiry.IsZero() {
		expiry := refreshed.Expiry
		newTokens.ExpiresAt = &expiry
	}

	if err := r.store.StoreTokens(ctx, userID, newTokens); err != nil {
		return nil, fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	r.logger.Info().Str("user_id", userID).Msg("refreshed twitter tokens")
	return &newTokens, nil
}

func (r *Refresher) needsRefresh(tokens *Tokens) bool {
	if tokens.ExpiresAt == nil {
		return false
	}
	return tokens.ExpiresAt.Sub(r.now()) < r.threshold
}

// handleRefreshFailure classifies a failed refresh. Provider rejections evict
// the credential; throttling keeps it; transport failures propagate so the
// caller can surface a transient error without touching the credential.
func (r *Refresher) handleRefreshFailure(ctx context.Context, userID string, tokens *Tokens, err error) (*Tokens, error) {
	switch {
	case twitter.IsRateLimited(err):
		metrics.TokenRefreshes.WithLabelValues("rate_limited").Inc()
		r.logger.Warn().Str("user_id", userID).Msg("token refresh rate limited, keeping existing credential")
		return tokens, nil

	case twitter.IsProviderError(err):
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		r.logger.Warn().Str("user_id", userID).Err(err).Msg("provider rejected refresh token, removing credential")
		if removeErr := r.store.RemoveTokens(ctx, userID); removeErr != nil {
			return nil, fmt.Errorf("failed to remove rejected credential: %w", removeErr)
		}
		metrics.CredentialsRemoved.Inc()
		return nil, nil

	default:
		metrics.TokenRefreshes.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
}
