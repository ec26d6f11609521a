package crypto

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// AlgorithmKMS is the name reported by KMSCipher
const AlgorithmKMS = "aws-kms"

// kmsAPI is the subset of the KMS client used by KMSCipher
type kmsAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSCipher encrypts with an AWS KMS key. The ciphertext is the base64 KMS blob.
type KMSCipher struct {
	client kmsAPI
	keyID  string
	region string
}

// NewKMSCipher creates a KMSCipher using the default AWS credential chain
func NewKMSCipher(keyID, region string) (*KMSCipher, error) {
	if keyID == "" {
		return nil, fmt.Errorf("KMS key ID is required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &KMSCipher{
		client: kms.NewFromConfig(cfg),
		keyID:  keyID,
		region: region,
	}, nil
}

// Encrypt encrypts plaintext with the configured KMS key
func (c *KMSCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	result, err := c.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(c.keyID),
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("KMS encryption failed: %w", err)
	}

	return encodeBase64(result.CiphertextBlob), nil
}

// Decrypt decrypts a KMS ciphertext blob
func (c *KMSCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	blob, err := decodeBase64(ciphertext)
	if err != nil {
		return "", &DecryptionError{Algorithm: AlgorithmKMS, Err: fmt.Errorf("failed to decode ciphertext: %w", err)}
	}

	result, err := c.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: blob,
		KeyId:          aws.String(c.keyID),
	})
	if err != nil {
		return "", &DecryptionError{Algorithm: AlgorithmKMS, Err: err}
	}

	return string(result.Plaintext), nil
}

// Algorithm returns "aws-kms"
func (c *KMSCipher) Algorithm() string {
	return AlgorithmKMS
}

// KeyID returns the KMS key ID
func (c *KMSCipher) KeyID() string {
	return c.keyID
}

var _ Cipher = (*KMSCipher)(nil)
