// Package media stores uploaded audio blobs and resolves sound locators to
// byte streams.
package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/soundscape/internal/config"
)

// StoreScheme prefixes locators of sounds kept in the resource store.
const StoreScheme = "store://"

// Storage abstracts blob storage for uploaded sounds.
type Storage interface {
	// Store writes r under a path derived from id and returns that path.
	Store(ctx context.Context, id string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	CheckAccess(ctx context.Context) error
}

// NewStorage picks S3 when a bucket is configured, the filesystem otherwise.
func NewStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (Storage, error) {
	if cfg.S3Bucket != "" {
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, using the default AWS credential chain")
		}
		s, err := NewS3Storage(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize S3 storage: %w", err)
		}
		return s, nil
	}
	return NewFilesystemStorage(cfg.MediaRoot, logger), nil
}

// blobPath spreads blobs over two directory levels keyed by the id suffix,
// which is random for uploaded sounds.
func blobPath(id string) string {
	if len(id) < 4 {
		return id + ".audio"
	}
	tail := id[len(id)-4:]
	return filepath.ToSlash(filepath.Join(tail[0:2], tail[2:4], id+".audio"))
}
