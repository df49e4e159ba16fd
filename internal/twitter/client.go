package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"authstatus-go/internal/metrics"
)

const defaultAPIBaseURL = "https://api.twitter.com"

// Endpoint is Twitter's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
}

// Token is a provider token set. Expiry is zero when the provider did not
// report one.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// User is the subset of the Twitter profile the service cares about.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Config holds the settings needed to talk to the Twitter API.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
}

// Client talks to the Twitter OAuth2 and v2 API endpoints. All errors that
// reached the provider come back as *APIError; transport failures come back
// unclassified.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
	apiBaseURL string
	logger     zerolog.Logger
}

// NewClient creates a Twitter API client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"tweet.read", "users.read", "offline.access"},
			Endpoint:     Endpoint,
		},
		httpClient: &http.Client{Timeout: timeout},
		apiBaseURL: defaultAPIBaseURL,
		logger:     logger,
	}
}

// AuthCodeURL builds the authorization URL with the PKCE challenge attached.
func (c *Client) AuthCodeURL(state, codeChallenge string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	return c.config.AuthCodeURL(state, opts...)
}

// ExchangeCode exchanges an authorization code plus its PKCE verifier for a
// token set.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Token, error) {
	start := time.Now()
	tok, err := c.config.Exchange(c.oauthContext(ctx), code,
		oauth2.SetAuthURLParam("code_verifier", verifier))
	metrics.ProviderCallDuration.WithLabelValues("token_exchange").Observe(time.Since(start).Seconds())
	if err != nil {
		err = classifyOAuthError(err)
		metrics.ProviderCalls.WithLabelValues("token_exchange", resultLabel(err)).Inc()
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("token_exchange", "success").Inc()

	return fromOAuthToken(tok), nil
}

// RefreshAccessToken exchanges a refresh token for a fresh token set.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token cannot be empty")
	}

	// Seed the token source with an already-expired token so it always goes
	// to the network.
	seed := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	start := time.Now()
	tok, err := c.config.TokenSource(c.oauthContext(ctx), seed).Token()
	metrics.ProviderCallDuration.WithLabelValues("token_refresh").Observe(time.Since(start).Seconds())
	if err != nil {
		err = classifyOAuthError(err)
		metrics.ProviderCalls.WithLabelValues("token_refresh", resultLabel(err)).Inc()
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("token_refresh", "success").Inc()

	refreshed := fromOAuthToken(tok)
	// Twitter rotates refresh tokens; keep the old one if the response
	// omitted a new one.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = refreshToken
	}
	return refreshed, nil
}

// GetCurrentUser calls the authenticated users/me endpoint.
func (c *Client) GetCurrentUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}

	url := c.apiBaseURL + "/2/users/me?user.fields=profile_image_url"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building users/me request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ProviderCallDuration.WithLabelValues("users_me").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("users_me", "transport_error").Inc()
		return nil, fmt.Errorf("calling users/me: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := &APIError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Detail:     string(body),
		}
		metrics.ProviderCalls.WithLabelValues("users_me", apiErr.Kind.String()).Inc()
		c.logger.Debug().Int("status", resp.StatusCode).Str("kind", apiErr.Kind.String()).Msg("users/me rejected")
		return nil, apiErr
	}
	metrics.ProviderCalls.WithLabelValues("users_me", "success").Inc()

	var payload struct {
		Data User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding users/me response: %w", err)
	}
	if payload.Data.ID == "" {
		return nil, fmt.Errorf("users/me response missing user id")
	}

	return &payload.Data, nil
}

// SetAPIBaseURL overrides the API base URL. Used by tests to point the client
// at a local server.
func (c *Client) SetAPIBaseURL(url string) {
	c.apiBaseURL = url
}

// SetTokenURL overrides the OAuth2 token endpoint. Used by tests.
func (c *Client) SetTokenURL(url string) {
	c.config.Endpoint.TokenURL = url
}

// oauthContext makes the oauth2 package use our timeout-configured client.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func fromOAuthToken(tok *oauth2.Token) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// classifyOAuthError converts oauth2 retrieve errors into classified
// *APIError values. Anything else (DNS failure, timeout) passes through
// unclassified.
func classifyOAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := 0
		if retrieveErr.Response != nil {
			code = retrieveErr.Response.StatusCode
		}
		kind := classifyStatus(code)
		// invalid_grant means the refresh token itself was rejected, even
		// when the provider answers with a 400.
		if kind == KindOther && retrieveErr.ErrorCode == "invalid_grant" {
			kind = KindUnauthorized
		}
		return &APIError{
			Kind:       kind,
			StatusCode: code,
			Detail:     retrieveErr.ErrorCode,
		}
	}
	return err
}

func resultLabel(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind.String()
	}
	return "transport_error"
}
