package store

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// blobCipher encrypts the whole serialized tokens.db payload at rest
//, rather than field-by-field, so unknown/extra JSON fields
// still round-trip exactly once decrypted.
type blobCipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// newBlobCipher derives a chacha20poly1305 key via pbkdf2 from a per-install
// secret file stored alongside the database (secretPath), generating one on
// first use.
func newBlobCipher(secretPath string) (*blobCipher, error) {
	secret, err := loadOrCreateInstallSecret(secretPath)
	if err != nil {
		return nil, err
	}
	key := pbkdf2.Key(secret, []byte("byokey-tokens-db"), 100_000, chacha20poly1305.KeySize, sha3.New256)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("store: init cipher: %w", err)
	}
	return &blobCipher{aead: aead}, nil
}

func loadOrCreateInstallSecret(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) >= 32 {
		return data, nil
	}
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("store: generate install secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create secret dir: %w", err)
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("store: write install secret: %w", err)
	}
	return secret, nil
}

// Encrypt seals plaintext with a fresh random nonce prefixed to the ciphertext.
func (c *blobCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("store: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func (c *blobCipher) Decrypt(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("store: ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}
