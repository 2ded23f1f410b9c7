// Package local keeps generated images on disk under a base directory, one
// subdirectory per day.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vbonduro/facet/internal/imagestore"
)

var errBadKey = errors.New("invalid storage key")

type LocalImageStore struct {
	basePath string
	now      func() time.Time
}

func NewLocalImageStore(basePath string) (*LocalImageStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &LocalImageStore{basePath: basePath, now: time.Now}, nil
}

// Save streams r into a temporary file beside its final name and renames it
// into place, so Get never sees a partly written image.
func (s *LocalImageStore) Save(ctx context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	key := imagestore.NewKey(s.now(), prefix, mimeType)
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create day directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if err := writeAndClose(ctx, tmp, r); err != nil {
		return "", errors.Join(err, os.Remove(tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Join(fmt.Errorf("failed to move image into place: %w", err), os.Remove(tmp.Name()))
	}
	return key, nil
}

func writeAndClose(ctx context.Context, f *os.File, r io.Reader) error {
	_, err := io.Copy(f, r)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return errors.Join(fmt.Errorf("failed to write file: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

func (s *LocalImageStore) Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error) {
	p, err := s.resolve(storageKey)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", imagestore.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, imagestore.MIMEForKey(storageKey), nil
}

func (s *LocalImageStore) Delete(ctx context.Context, storageKey string) error {
	p, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return imagestore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve maps a slash-separated key to a path under basePath. Keys that are
// absolute or climb out of basePath are refused.
func (s *LocalImageStore) resolve(storageKey string) (string, error) {
	rel := filepath.FromSlash(storageKey)
	if storageKey == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", errBadKey, storageKey)
	}
	return filepath.Join(s.basePath, rel), nil
}
