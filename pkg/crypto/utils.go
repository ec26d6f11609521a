package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// decodeBase64 decodes a base64 encoded string
func decodeBase64(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}

// encodeBase64 encodes bytes as standard base64
func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// fingerprint returns a short, non-reversible identifier for key material
func fingerprint(key []byte) string {
	hash := sha256.Sum256(key)
	return fmt.Sprintf("sha256:%x", hash[:8])
}
