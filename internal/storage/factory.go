package storage

import (
	"context"
	"fmt"

	"mediad/internal/config"
)

// NewStorageFromConfig creates a Storage implementation based on the storage config type.
func NewStorageFromConfig(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(cfg.Name), nil
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem storage requires fs_root to be set")
		}
		return NewFileSystemStorage(cfg.Name, cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
