// Package status composes the token store, refresher, provider client and
// cache into the rate-aware Twitter status check.
package status

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"authstatus-go/internal/auth"
	"authstatus-go/internal/cache"
	"authstatus-go/internal/metrics"
	"authstatus-go/internal/twitter"
)

const cacheKeyPrefix = "twitter_status:"

// UserInfo is the profile payload returned to callers.
type UserInfo struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Result is the outcome of one status check.
type Result struct {
	Authenticated bool      `json:"authenticated"`
	User          *UserInfo `json:"user,omitempty"`
	RateLimited   bool      `json:"rateLimited,omitempty"`
	Cached        bool      `json:"cached,omitempty"`
}

// UserFetcher is the provider-side validation capability the checker needs.
type UserFetcher interface {
	GetCurrentUser(ctx context.Context, accessToken string) (*twitter.User, error)
}

// TTLPolicy holds the per-outcome cache TTLs. A successful check is cached
// longest of the normal outcomes; a negative result expires quickly so a
// fresh connect is picked up; a rate-limited result is cached longest of all
// so a throttling provider is left alone.
type TTLPolicy struct {
	Success   time.Duration
	Negative  time.Duration
	RateLimit time.Duration
}

// Checker runs the status-check state machine. Concurrent checks for the
// same user share one in-flight computation.
type Checker struct {
	tokens           *auth.TokenStore
	refresher        *auth.Refresher
	provider         UserFetcher
	cache            *cache.Cache
	ttl              TTLPolicy
	refreshThreshold time.Duration
	group            singleflight.Group
	logger           zerolog.Logger
	now              func() time.Time
}

// NewChecker creates a Checker.
func NewChecker(tokens *auth.TokenStore, refresher *auth.Refresher, provider UserFetcher, statusCache *cache.Cache, ttl TTLPolicy, refreshThreshold time.Duration, logger zerolog.Logger) *Checker {
	if refreshThreshold <= 0 {
		refreshThreshold = auth.DefaultRefreshThreshold
	}
	return &Checker{
		tokens:           tokens,
		refresher:        refresher,
		provider:         provider,
		cache:            statusCache,
		ttl:              ttl,
		refreshThreshold: refreshThreshold,
		logger:           logger,
		now:              time.Now,
	}
}

// Check returns the Twitter connection status for a user. The fast path is a
// cache hit; otherwise the credential is loaded, refreshed if near expiry,
// and validated against the provider when the cached profile cannot be
// trusted. Every normal outcome is cached with its policy TTL. Only
// persistence or transport failures surface as errors.
func (c *Checker) Check(ctx context.Context, userID string) (Result, error) {
	key := cacheKeyPrefix + userID

	if v, ok := c.cache.Get(key); ok {
		metrics.CacheHits.Inc()
		metrics.StatusChecks.WithLabelValues("cached").Inc()
		res := v.(Result)
		res.Cached = true
		return res, nil
	}
	metrics.CacheMisses.Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.check(ctx, userID, key)
	})
	if err != nil {
		metrics.StatusChecks.WithLabelValues("error").Inc()
		return Result{}, err
	}
	return v.(Result), nil
}

func (c *Checker) check(ctx context.Context, userID, key string) (Result, error) {
	tokens, err := c.refresher.RefreshIfNeeded(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if tokens == nil || !c.tokensUsable(tokens) {
		return c.negative(key, "not_authenticated"), nil
	}

	profile, err := c.tokens.GetUserProfile(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	// Fast path: a cached profile and an expiry comfortably far away mean we
	// can answer without touching the provider.
	if profile != nil && !c.expiryNear(tokens) {
		res := Result{
			Authenticated: true,
			User: &UserInfo{
				ID:       profile.TwitterUserID,
				Username: profile.Username,
			},
		}
		c.cache.Set(key, res, c.ttl.Success)
		metrics.StatusChecks.WithLabelValues("authenticated").Inc()
		return res, nil
	}

	return c.validate(ctx, userID, key, tokens, profile)
}

// validate calls the provider's who-am-I endpoint and classifies the outcome.
func (c *Checker) validate(ctx context.Context, userID, key string, tokens *auth.Tokens, profile *auth.Profile) (Result, error) {
	user, err := c.provider.GetCurrentUser(ctx, tokens.AccessToken)
	if err == nil {
		if storeErr := c.tokens.StoreUserProfile(ctx, userID, user.ID, user.Username); storeErr != nil {
			c.logger.Warn().Str("user_id", userID).Err(storeErr).Msg("could not store refreshed profile")
		}
		res := Result{
			Authenticated: true,
			User: &UserInfo{
				ID:              user.ID,
				Username:        user.Username,
				Name:            user.Name,
				ProfileImageURL: user.ProfileImageURL,
			},
		}
		c.cache.Set(key, res, c.ttl.Success)
		metrics.StatusChecks.WithLabelValues("authenticated").Inc()
		return res, nil
	}

	if twitter.IsRateLimited(err) {
		res := Result{RateLimited: true}
		if profile != nil {
			// Degraded answer: the provider is throttling, so trust the
			// cached profile even though it may be stale.
			res.Authenticated = true
			res.User = &UserInfo{
				ID:       profile.TwitterUserID,
				Username: profile.Username,
			}
		}
		c.cache.Set(key, res, c.ttl.RateLimit)
		metrics.StatusChecks.WithLabelValues("rate_limited").Inc()
		c.logger.Warn().Str("user_id", userID).Bool("stale_profile", profile != nil).Msg("twitter rate limited status validation")
		return res, nil
	}

	// Anything else, including timeouts, invalidates the credential.
	c.logger.Warn().Str("user_id", userID).Err(err).Msg("provider rejected credential, removing it")
	if removeErr := c.tokens.RemoveTokens(ctx, userID); removeErr != nil {
		return Result{}, removeErr
	}
	metrics.CredentialsRemoved.Inc()
	return c.negative(key, "invalid"), nil
}

func (c *Checker) negative(key, outcome string) Result {
	res := Result{Authenticated: false}
	c.cache.Set(key, res, c.ttl.Negative)
	metrics.StatusChecks.WithLabelValues(outcome).Inc()
	return res
}

func (c *Checker) tokensUsable(tokens *auth.Tokens) bool {
	if tokens.AccessToken == "" {
		return false
	}
	return tokens.ExpiresAt == nil || tokens.ExpiresAt.After(c.now())
}

func (c *Checker) expiryNear(tokens *auth.Tokens) bool {
	if tokens.ExpiresAt == nil {
		return false
	}
	return tokens.ExpiresAt.Sub(c.now()) < c.refreshThreshold
}
