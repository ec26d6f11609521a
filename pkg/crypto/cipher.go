package crypto

import (
	"context"
	"fmt"
)

// Cipher encrypts and decrypts opaque strings for storage at rest.
// Ciphertext produced by Encrypt is self-contained: it carries everything
// Decrypt needs besides the key.
type Cipher interface {
	// Encrypt returns the ciphertext for plaintext
	Encrypt(ctx context.Context, plaintext string) (string, error)

	// Decrypt returns the plaintext for a value produced by Encrypt.
	// Any other input fails with *DecryptionError.
	Decrypt(ctx context.Context, ciphertext string) (string, error)

	// Algorithm returns the cipher name ("aes-256-gcm", "aws-kms")
	Algorithm() string

	// KeyID returns an identifier of the key in use
	KeyID() string
}

// DecryptionError is returned when a ciphertext cannot be opened
type DecryptionError struct {
	Algorithm string
	Err       error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("%s: failed to decrypt: %v", e.Algorithm, e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}
