package storage

import (
	"context"
	"time"
)

// Credential is one user's stored Twitter credential row. Token material is
// kept encrypted; expiry and profile columns are plaintext so validity checks
// and the profile fast path never need to decrypt.
type Credential struct {
	UserID          string
	EncryptedToken  []byte // nil when no token is stored
	Nonce           []byte
	TokenExpiresAt  *time.Time
	TwitterUserID   string
	TwitterUsername string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Storage defines the interface for low-level database operations
// required by the higher-level TokenStore.
type Storage interface {
	GetCredential(ctx context.Context, userID string) (*Credential, error)
	UpsertTokens(ctx context.Context, userID string, encryptedToken, nonce []byte, expiresAt *time.Time) error
	UpsertProfile(ctx context.Context, userID, twitterUserID, twitterUsername string) error
	DeleteCredential(ctx context.Context, userID string) error
}
