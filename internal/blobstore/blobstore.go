// Package blobstore stores sound media under logical slash-separated paths,
// backed by either the local filesystem or an S3-compatible object store.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/smallwoj/join-sound-johnson/internal/config"
)

// ErrNotFound reports that no blob exists at the requested path.
var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, path string, r io.Reader) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error

	// ResolveLocal returns the absolute path of a locally seekable copy of
	// the blob. The object-store backend materializes the blob into a
	// per-process scratch directory first.
	ResolveLocal(ctx context.Context, path string) (string, error)
}

// Open builds the store selected by the configured backend. The choice is
// made once here; callers only ever see the Store interface.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, error) {
	switch cfg.StorageBackend {
	case config.BackendFilesystem:
		fs, err := NewFilesystem(cfg.MediaRoot, log)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.BackendS3:
		s3, err := NewS3(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		}, log)
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
