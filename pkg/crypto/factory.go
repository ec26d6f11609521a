package crypto

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/takutakahashi/adplatform-auth/pkg/config"
)

// NewCipher creates the Cipher described by cfg.
// Priority: KMS, then key file, then derived secret. There is no plaintext fallback.
func NewCipher(cfg config.EncryptionConfig) (Cipher, error) {
	if cfg.KMSKeyID != "" && cfg.KMSRegion != "" {
		c, err := NewKMSCipher(cfg.KMSKeyID, cfg.KMSRegion)
		if err == nil {
			if err := testKMSAvailability(c); err == nil {
				log.Printf("[ENCRYPTION] Using AWS KMS encryption (key: %s, region: %s)", cfg.KMSKeyID, cfg.KMSRegion)
				return c, nil
			}
			log.Printf("[ENCRYPTION] KMS unavailable, falling back to local encryption: %v", err)
		} else {
			log.Printf("[ENCRYPTION] Failed to create KMS cipher: %v", err)
		}
	}

	if cfg.KeyFile != "" {
		c, err := NewAESCipherFromFile(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		log.Printf("[ENCRYPTION] Using local AES-256-GCM encryption (key fingerprint: %s)", c.KeyID())
		return c, nil
	}

	if cfg.Secret != "" {
		c, err := NewAESCipherFromSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		log.Printf("[ENCRYPTION] Using AES-256-GCM with derived key (key fingerprint: %s)", c.KeyID())
		return c, nil
	}

	return nil, fmt.Errorf("no encryption configured: set encryption.secret, encryption.key_file or encryption.kms_key_id")
}

func testKMSAvailability(c *KMSCipher) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Encrypt(ctx, "test")
	return err
}
