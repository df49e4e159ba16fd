package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of the Store interface.
// Expired sessions are evicted lazily when read.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]sessionData
	now      func() time.Time
}

type sessionData struct {
	userID  string
	expires time.Time
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]sessionData),
		now:      time.Now,
	}
}

// Create creates a new session for a user and returns the session ID.
func (s *InMemoryStore) Create(ctx context.Context, userID string, duration time.Duration) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = sessionData{
		userID:  userID,
		expires: s.now().Add(duration),
	}

	return sessionID, nil
}

// Get retrieves the user ID for a given session ID.
func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}

	if s.now().After(data.expires) {
		delete(s.sessions, sessionID)
		return "", ErrExpired
	}

	return data.userID, nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// generateSessionID creates a new random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
