package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Store defines the interface for session management. Sessions map an opaque
// cookie value to the user identity handed to us by the upstream auth layer.
type Store interface {
	// Create creates a new session for a user and returns the session ID.
	Create(ctx context.Context, userID string, duration time.Duration) (string, error)
	// Get retrieves the user ID for a given session ID.
	Get(ctx context.Context, sessionID string) (string, error)
	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error
}
