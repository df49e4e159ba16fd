package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// PKCEStore defines the interface for generating, storing and retrieving
// PKCE code verifiers.
type PKCEStore interface {
	GenerateCodeVerifier(length int) (string, error)
	GenerateCodeChallenge(verifier string) (string, error)
	StoreVerifier(state, verifier string) error
	GetVerifier(state string) (string, error)
	ValidateChallenge(challenge, verifier string) bool
}

// verifierCharset is the RFC 7636 unreserved character set.
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// PKCEGenerator produces RFC 7636 code verifiers and S256 challenges.
type PKCEGenerator struct{}

// NewPKCEGenerator creates a PKCEGenerator.
func NewPKCEGenerator() *PKCEGenerator {
	return &PKCEGenerator{}
}

// GenerateCodeVerifier creates a random verifier of the given length.
// RFC 7636 requires between 43 and 128 characters.
func (g *PKCEGenerator) GenerateCodeVerifier(length int) (string, error) {
	if length < 43 || length > 128 {
		return "", fmt.Errorf("verifier length must be between 43 and 128, got %d", length)
	}

	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	verifier := make([]byte, length)
	for i, b := range raw {
		verifier[i] = verifierCharset[int(b)%len(verifierCharset)]
	}
	return string(verifier), nil
}

// GenerateCodeChallenge derives the S256 challenge for a verifier.
func (g *PKCEGenerator) GenerateCodeChallenge(verifier string) (string, error) {
	if verifier == "" {
		return "", fmt.Errorf("verifier cannot be empty")
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// ValidateChallenge reports whether challenge matches the S256 derivation of
// verifier.
func (g *PKCEGenerator) ValidateChallenge(challenge, verifier string) bool {
	expected, err := g.GenerateCodeChallenge(verifier)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
