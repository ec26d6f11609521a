package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

const (
	// AlgorithmAESGCM is the name reported by AESCipher
	AlgorithmAESGCM = "aes-256-gcm"

	aesKeySize = 32
	hkdfInfo   = "adplatform-auth token encryption v1"
)

// AESCipher encrypts with AES-256-GCM. The ciphertext is base64(nonce || sealed).
type AESCipher struct {
	aead           cipher.AEAD
	keyFingerprint string
}

// NewAESCipher creates an AESCipher from a raw 32 byte key
func NewAESCipher(key []byte) (*AESCipher, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESCipher{
		aead:           gcm,
		keyFingerprint: fingerprint(key),
	}, nil
}

// NewAESCipherFromSecret derives a 32 byte key from a configuration secret with HKDF-SHA256
func NewAESCipherFromSecret(secret string) (*AESCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is empty")
	}

	key := make([]byte, aesKeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	return NewAESCipher(key)
}

// NewAESCipherFromFile reads a raw 32 byte key from keyPath
func NewAESCipherFromFile(keyPath string) (*AESCipher, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read encryption key from file: %w", err)
	}
	return NewAESCipher(key)
}

// Encrypt seals plaintext under a fresh random nonce
func (c *AESCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encodeBase64(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt
func (c *AESCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	raw, err := decodeBase64(ciphertext)
	if err != nil {
		return "", &DecryptionError{Algorithm: AlgorithmAESGCM, Err: fmt.Errorf("failed to decode ciphertext: %w", err)}
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", &DecryptionError{
			Algorithm: AlgorithmAESGCM,
			Err:       fmt.Errorf("ciphertext too short: %d bytes", len(raw)),
		}
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Algorithm: AlgorithmAESGCM, Err: err}
	}

	return string(plaintext), nil
}

// Algorithm returns "aes-256-gcm"
func (c *AESCipher) Algorithm() string {
	return AlgorithmAESGCM
}

// KeyID returns the key fingerprint
func (c *AESCipher) KeyID() string {
	return c.keyFingerprint
}

var _ Cipher = (*AESCipher)(nil)
