// Package archive uploads restored files to longer-term storage after a
// completed transfer. The receiving workstation is often a disposable
// environment; pushing the result out immediately is what makes the
// transfer durable.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrStoreUnavailable wraps failures reaching or preparing the backend.
var ErrStoreUnavailable = errors.New("archive store unavailable")

// ErrUploadFailed wraps failures while writing an object.
var ErrUploadFailed = errors.New("archive upload failed")

// Store publishes a local file to an archive backend.
type Store interface {
	// Upload copies the file at localPath into the store and returns the
	// destination location in backend-specific notation.
	Upload(ctx context.Context, localPath string) (string, error)
}

// ParsePath splits "bucket/prefix" or "bucket" into its components.
func ParsePath(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// FSStore archives into a local or mounted directory.
type FSStore struct {
	dir string
}

// NewFSStore creates a directory-backed store, creating dir if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrStoreUnavailable)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &FSStore{dir: dir}, nil
}

// Upload copies localPath into the store directory.
func (s *FSStore) Upload(_ context.Context, localPath string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %v", ErrUploadFailed, localPath, err)
	}
	defer src.Close()

	dest := filepath.Join(s.dir, filepath.Base(localPath))
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrUploadFailed, dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("%w: copying to %s: %v", ErrUploadFailed, dest, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %v", ErrUploadFailed, dest, err)
	}
	return dest, nil
}
