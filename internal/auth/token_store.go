package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"authstatus-go/internal/storage"
)

// Tokens is the decrypted token subset of a credential. A nil ExpiresAt means
// the token is treated as non-expiring.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// Profile is the cached Twitter display profile for a user.
type Profile struct {
	TwitterUserID string
	Username      string
}

// tokenPayload is the encrypted-at-rest serialization of the secret fields.
type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenStore handles the logic for storing and retrieving Twitter tokens,
// including encryption and decryption. Absence of a credential is a normal
// outcome, never an error. TokenStore performs no network calls.
type TokenStore struct {
	db            storage.Storage
	encryptionKey []byte
	now           func() time.Time
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(db storage.Storage, key []byte) *TokenStore {
	return &TokenStore{db: db, encryptionKey: key, now: time.Now}
}

// StoreTokens upserts the token fields of a user's credential. Profile fields
// on an existing credential are left untouched.
func (ts *TokenStore) StoreTokens(ctx context.Context, userID string, tokens Tokens) error {
	if tokens.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}

	payload, err := json.Marshal(tokenPayload{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token payload: %w", err)
	}

	encrypted, nonce, err := ts.encrypt(payload)
	if err != nil {
		return err
	}

	return ts.db.UpsertTokens(ctx, userID, encrypted, nonce, tokens.ExpiresAt)
}

// GetTokens returns the stored token subset for a user, or (nil, nil) when no
// credential exists.
func (ts *TokenStore) GetTokens(ctx context.Context, userID string) (*Tokens, error) {
	cred, err := ts.db.GetCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	if len(cred.EncryptedToken) == 0 {
		return nil, nil
	}

	decrypted, err := ts.decrypt(cred.EncryptedToken, cred.Nonce)
	if err != nil {
		return nil, err
	}

	var payload tokenPayload
	if err := json.Unmarshal(decrypted, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token payload: %w", err)
	}

	return &Tokens{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    cred.TokenExpiresAt,
	}, nil
}

// RemoveTokens deletes a user's credential. Removing a credential that does
// not exist has no observable effect.
func (ts *TokenStore) RemoveTokens(ctx context.Context, userID string) error {
	return ts.db.DeleteCredential(ctx, userID)
}

// HasValidTokens reports whether a usable access token is stored: one exists
// and its expiry, if any, is strictly in the future. Pure read, no network.
func (ts *TokenStore) HasValidTokens(ctx context.Context, userID string) (bool, error) {
	cred, err := ts.db.GetCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get credential: %w", err)
	}
	if len(cred.EncryptedToken) == 0 {
		return false, nil
	}
	if cred.TokenExpiresAt != nil && !cred.TokenExpiresAt.After(ts.now()) {
		return false, nil
	}
	return true, nil
}

// StoreUserProfile upserts the cached Twitter profile for a user. Token
// fields on an existing credential are left untouched.
func (ts *TokenStore) StoreUserProfile(ctx context.Context, userID, twitterUserID, username string) error {
	return ts.db.UpsertProfile(ctx, userID, twitterUserID, username)
}

// GetUserProfile returns the cached profile for a user, or (nil, nil) when
// none is stored.
func (ts *TokenStore) GetUserProfile(ctx context.Context, userID string) (*Profile, error) {
	cred, err := ts.db.GetCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	if cred.TwitterUserID == "" {
		return nil, nil
	}
	return &Profile{
		TwitterUserID: cred.TwitterUserID,
		Username:      cred.TwitterUsername,
	}, nil
}

func (ts *TokenStore) encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(ts.encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func (ts *TokenStore) decrypt(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(ts.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return plaintext, nil
}
