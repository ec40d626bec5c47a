package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3 stores blobs as objects in a single bucket; the logical path is the
// object key.
type S3 struct {
	client  *minio.Client
	bucket  string
	scratch string
	log     zerolog.Logger
}

// NewS3 connects to the object store and creates the bucket if it does not
// exist yet.
func NewS3(ctx context.Context, opts S3Options, log zerolog.Logger) (*S3, error) {
	endpoint := opts.Endpoint
	useSSL := opts.UseSSL
	// allow full http:// or https:// endpoints
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: useSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", opts.Bucket, err)
		}
	}

	scratch, err := os.MkdirTemp("", "joinsounds-s3-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	s3log := log.With().Str("component", "blobstore").Str("backend", "s3").Logger()
	s3log.Info().Str("endpoint", opts.Endpoint).Str("bucket", opts.Bucket).Msg("s3 connected")

	return &S3{client: client, bucket: opts.Bucket, scratch: scratch, log: s3log}, nil
}

func (s *S3) Put(ctx context.Context, path string, r io.Reader) error {
	if _, err := s.client.PutObject(ctx, s.bucket, path, r, -1, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("failed to put object %s: %w", path, err)
	}
	s.log.Debug().Str("path", path).Msg("blob stored")
	return nil
}

func (s *S3) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", path, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", path, err)
	}
	return obj, nil
}

func (s *S3) Delete(ctx context.Context, path string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat object %s: %w", path, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", path, err)
	}
	s.log.Debug().Str("path", path).Msg("blob deleted")
	return nil
}

// ResolveLocal downloads the object into the scratch directory, mirroring
// the key's directory structure, and returns the local file path.
func (s *S3) ResolveLocal(ctx context.Context, path string) (string, error) {
	local := filepath.Join(s.scratch, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory for %s: %w", path, err)
	}

	obj, err := s.Get(ctx, path)
	if err != nil {
		return "", err
	}
	defer obj.Close()

	file, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file for %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, obj); err != nil {
		return "", fmt.Errorf("failed to download object %s: %w", path, err)
	}
	return local, nil
}
