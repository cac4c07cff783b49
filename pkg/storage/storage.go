// Package storage keeps exported job outputs until they are downloaded or expire.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/tapu-processor/config"
	"github.com/feichai0017/tapu-processor/pkg/logger"
	"github.com/feichai0017/tapu-processor/pkg/storage/local"
	"github.com/feichai0017/tapu-processor/pkg/storage/minio"
	"github.com/feichai0017/tapu-processor/pkg/storage/s3"
)

type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage is an object store addressed by key.
type Storage interface {
	// Store writes reader under key and returns the key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// CleanupBefore deletes every object last modified before threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage builds the backend selected by cfg.Type.
func NewStorage(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	log = log.Named("storage")
	switch StorageType(cfg.Type) {
	case StorageTypeLocal:
		return local.NewLocalStorage(cfg.Local.Root, log)
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, cfg.S3, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// OutputKey is the key a job's export is stored under.
func OutputKey(jobID, ext string) string {
	return fmt.Sprintf("outputs/%s.%s", jobID, ext)
}
