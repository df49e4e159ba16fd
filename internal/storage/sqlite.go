package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Config holds the database configuration
type Config struct {
	Path            string        // Path to the SQLite database file
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	BusyTimeout     time.Duration // SQLite busy timeout
}

// DefaultConfig returns a default database configuration
func DefaultConfig() Config {
	return Config{
		Path:            "authstatus.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: database path cannot be empty", ErrInvalidInput)
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("%w: max open connections must be positive", ErrInvalidInput)
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("%w: max idle connections cannot be negative", ErrInvalidInput)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("%w: max idle connections cannot be greater than max open connections", ErrInvalidInput)
	}
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("%w: busy timeout must be positive", ErrInvalidInput)
	}
	return nil
}

// SQLiteStorage handles all database operations
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLiteStorage instance
func NewSQLiteStorage(cfg Config) (*SQLiteStorage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &SQLiteStorage{db: db, path: cfg.Path}, nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// validateTokenInput checks if the token input parameters are valid
func validateTokenInput(userID string, token, nonce []byte) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}
	if len(token) == 0 {
		return fmt.Errorf("%w: token cannot be empty", ErrInvalidInput)
	}
	if len(nonce) == 0 {
		return fmt.Errorf("%w: nonce cannot be empty", ErrInvalidInput)
	}
	return nil
}

// UpsertTokens stores or updates the encrypted token material for a user.
// Profile columns on an existing row are left untouched.
func (s *SQLiteStorage) UpsertTokens(ctx context.Context, userID string, encryptedToken, nonce []byte, expiresAt *time.Time) error {
	if err := validateTokenInput(userID, encryptedToken, nonce); err != nil {
		return err
	}

	query := `
		INSERT INTO credentials (user_id, encrypted_token, nonce, token_expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			encrypted_token = excluded.encrypted_token,
			nonce = excluded.nonce,
			token_expires_at = excluded.token_expires_at
	`
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query, userID, encryptedToken, nonce, expiry)
	if err != nil {
		return fmt.Errorf("failed to upsert tokens: %w", err)
	}
	return nil
}

// UpsertProfile stores or updates the cached Twitter profile for a user.
// Token columns on an existing row are left untouched.
func (s *SQLiteStorage) UpsertProfile(ctx context.Context, userID, twitterUserID, twitterUsername string) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}
	if twitterUserID == "" {
		return fmt.Errorf("%w: twitter user ID cannot be empty", ErrInvalidInput)
	}

	query := `
		INSERT INTO credentials (user_id, twitter_user_id, twitter_username)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			twitter_user_id = excluded.twitter_user_id,
			twitter_username = excluded.twitter_username
	`
	_, err := s.db.ExecContext(ctx, query, userID, twitterUserID, twitterUsername)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetCredential retrieves the credential row for a user.
func (s *SQLiteStorage) GetCredential(ctx context.Context, userID string) (*Credential, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}

	cred := &Credential{}
	var expiry sql.NullTime
	var twitterUserID, twitterUsername sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT
			user_id, encrypted_token, nonce, token_expires_at,
			twitter_user_id, twitter_username,
			created_at, updated_at
		FROM credentials
		WHERE user_id = ?`,
		userID).Scan(
		&cred.UserID,
		&cred.EncryptedToken,
		&cred.Nonce,
		&expiry,
		&twitterUserID,
		&twitterUsername,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: credential not found for user %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if expiry.Valid {
		cred.TokenExpiresAt = &expiry.Time
	}
	if twitterUserID.Valid {
		cred.TwitterUserID = twitterUserID.String
	}
	if twitterUsername.Valid {
		cred.TwitterUsername = twitterUsername.String
	}

	return cred, nil
}

// DeleteCredential removes the credential row for a user. Deleting a
// nonexistent credential is not an error.
func (s *SQLiteStorage) DeleteCredential(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}

	query := `DELETE FROM credentials WHERE user_id = ?`
	_, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// CountCredentials returns the total number of credential rows and how many
// of them currently hold token material.
func (s *SQLiteStorage) CountCredentials(ctx context.Context) (total, withTokens int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN encrypted_token IS NOT NULL THEN 1 END)
		FROM credentials
	`).Scan(&total, &withTokens)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return total, withTokens, nil
}
