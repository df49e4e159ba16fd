package app

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"
)

const sessionCookieName = "session_id"

// writeJSON writes v as a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

//
// Session handlers
//

// handleCreateSession exchanges an upstream-issued identity for a session
// cookie. The upstream auth layer proves itself with the shared internal
// secret; browsers never call this endpoint directly.
func (a *Application) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	secret := r.Header.Get("X-Internal-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.Config.Session.InternalSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid internal secret")
		return
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ttl := a.Config.Session.TTL.Duration
	sessionID, err := a.SessionStore.Create(r.Context(), body.UserID, ttl)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to create session")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusCreated, map[string]bool{"created": true})
}

//
// Twitter handlers
//

// handleStatus answers the rate-aware authentication status check.
// Normal "not connected" states are 200 responses; only transient
// persistence or network failures become a 500.
func (a *Application) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "could not identify user")
		return
	}

	result, err := a.Checker.Check(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Str("user_id", userID).Err(err).Msg("status check failed")
		writeError(w, http.StatusInternalServerError, "status check failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleConnect initiates the OAuth2 + PKCE flow by redirecting the user to
// the Twitter consent page.
func (a *Application) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "could not identify user")
		return
	}

	authURL, err := a.OAuth.GetAuthURL(userID)
	if err != nil {
		a.Logger.Error().Str("user_id", userID).Err(err).Msg("failed to generate auth URL")
		writeError(w, http.StatusInternalServerError, "failed to generate auth URL")
		return
	}

	http.Redirect(w, r, authURL, http.StatusSeeOther)
}

// handleCallback handles the redirect from Twitter after user consent.
// It exchanges the authorization code for tokens and stores the credential.
func (a *Application) handleCallback(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "could not identify user")
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "missing code or state")
		return
	}

	if err := a.OAuth.HandleCallback(r.Context(), code, state, userID); err != nil {
		a.Logger.Error().Str("user_id", userID).Err(err).Msg("auth callback failed")
		writeError(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	http.Redirect(w, r, a.Config.Twitter.DashboardURL, http.StatusSeeOther)
}

// handleDisconnect removes the stored credential for the user. Disconnecting
// when nothing is stored succeeds.
func (a *Application) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := getUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "could not identify user")
		return
	}

	if err := a.Tokens.RemoveTokens(r.Context(), userID); err != nil {
		a.Logger.Error().Str("user_id", userID).Err(err).Msg("failed to remove tokens")
		writeError(w, http.StatusInternalServerError, "failed to disconnect")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

//
// Operational handlers
//

func (a *Application) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := a.Storage.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
