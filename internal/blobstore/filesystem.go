package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Filesystem keeps blobs as plain files under a media root directory.
type Filesystem struct {
	root string
	log  zerolog.Logger
}

func NewFilesystem(root string, log zerolog.Logger) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root %q: %w", abs, err)
	}
	return &Filesystem{
		root: abs,
		log:  log.With().Str("component", "blobstore").Str("backend", "filesystem").Logger(),
	}, nil
}

func (f *Filesystem) localPath(path string) string {
	return filepath.Join(f.root, filepath.FromSlash(path))
}

func (f *Filesystem) Put(_ context.Context, path string, r io.Reader) error {
	dst := f.localPath(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	f.log.Debug().Str("path", path).Msg("blob stored")
	return nil
}

func (f *Filesystem) Get(_ context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(f.localPath(path))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return file, nil
}

// Delete removes the file and then prunes now-empty ancestor directories,
// stopping at the first non-empty one or the media root.
func (f *Filesystem) Delete(_ context.Context, path string) error {
	local := f.localPath(path)
	if err := os.Remove(local); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	for dir := filepath.Dir(local); dir != f.root; dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
	}

	f.log.Debug().Str("path", path).Msg("blob deleted")
	return nil
}

func (f *Filesystem) ResolveLocal(_ context.Context, path string) (string, error) {
	local := f.localPath(path)
	if _, err := os.Stat(local); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return local, nil
}
