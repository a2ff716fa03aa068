package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateVerifier returns a high-entropy, URL-safe code_verifier of at
// least 43 characters
func GenerateVerifier() (string, error) {
	buf := make([]byte, 32) // base64url(32 bytes) = 43 chars, no padding
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("oauth: generate code_verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ChallengeFromVerifier derives code_challenge = base64url(sha256(verifier)).
func ChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns a fresh 128-bit state token bound to one login attempt.
func GenerateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
