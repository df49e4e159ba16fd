package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authstatus-go/internal/storage"
	"authstatus-go/internal/twitter"
)

// testEncryptionKey is a 32-byte AES-256 key for tests.
var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

// memStorage is an in-memory storage.Storage implementation.
type memStorage struct {
	mu    sync.Mutex
	creds map[string]*storage.Credential
	err   error // when set, every call fails with it
}

func newMemStorage() *memStorage {
	return &memStorage{creds: make(map[string]*storage.Credential)}
}

func (m *memStorage) GetCredential(ctx context.Context, userID string) (*storage.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cred, ok := m.creds[userID]
	if !ok {
		return nil, fmt.Errorf("%w: credential not found for user %s", storage.ErrNotFound, userID)
	}
	copied := *cred
	return &copied, nil
}

func (m *memStorage) UpsertTokens(ctx context.Context, userID string, encryptedToken, nonce []byte, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cred, ok := m.creds[userID]
	if !ok {
		cred = &storage.Credential{UserID: userID, CreatedAt: time.Now()}
		m.creds[userID] = cred
	}
	cred.EncryptedToken = encryptedToken
	cred.Nonce = nonce
	cred.TokenExpiresAt = expiresAt
	cred.UpdatedAt = time.Now()
	return nil
}

func (m *memStorage) UpsertProfile(ctx context.Context, userID, twitterUserID, twitterUsername string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cred, ok := m.creds[userID]
	if !ok {
		cred = &storage.Credential{UserID: userID, CreatedAt: time.Now()}
		m.creds[userID] = cred
	}
	cred.TwitterUserID = twitterUserID
	cred.TwitterUsername = twitterUsername
	cred.UpdatedAt = time.Now()
	return nil
}

func (m *memStorage) DeleteCredential(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.creds, userID)
	return nil
}

// mockTokenSource is a TokenSource that counts refresh calls.
type mockTokenSource struct {
	mu    sync.Mutex
	token *twitter.Token
	err   error
	calls int
}

func (m *mockTokenSource) RefreshAccessToken(ctx context.Context, refreshToken string) (*twitter.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	copied := *m.token
	return &copied, nil
}

func (m *mockTokenSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockProvider implements the Provider interface for connect-flow tests.
type mockProvider struct {
	mu            sync.Mutex
	exchangeToken *twitter.Token
	exchangeErr   error
	user          *twitter.User
	userErr       error
	lastCode      string
	lastVerifier  string
}

func (m *mockProvider) AuthCodeURL(state, codeChallenge string) string {
	return fmt.Sprintf("https://twitter.example/authorize?state=%s&code_challenge=%s", state, codeChallenge)
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code, verifier string) (*twitter.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCode = code
	m.lastVerifier = verifier
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	copied := *m.exchangeToken
	return &copied, nil
}

func (m *mockProvider) GetCurrentUser(ctx context.Context, accessToken string) (*twitter.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userErr != nil {
		return nil, m.userErr
	}
	copied := *m.user
	return &copied, nil
}
