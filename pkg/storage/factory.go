package storage

import (
	"context"
	"fmt"

	"github.com/takutakahashi/adplatform-auth/pkg/config"
)

// NewStore creates a Store based on the configuration
func NewStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(), nil

	case "file":
		path := cfg.FilePath
		if path == "" {
			path = "./connections.json"
		}
		return NewFileStore(path)

	case "s3":
		return NewS3Store(ctx, cfg.S3)

	case "kubernetes":
		return NewKubernetesStoreFromConfig(cfg.Kubernetes)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
