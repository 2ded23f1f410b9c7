// Package imagestore persists generated images so they survive the session
// and can be downloaded by key.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var ErrNotFound = errors.New("image not found")

type ImageStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

// NewKey builds the storage key for an image saved at t. Keys are grouped
// by UTC day, "2006-01-02/<prefix>_<nanos><ext>", and always use forward
// slashes whatever the backend.
func NewKey(t time.Time, prefix, mimeType string) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%s_%d%s", t.Format("2006-01-02"), prefix, t.UnixNano(), ExtForMIME(mimeType))
}

// ExtForMIME returns the file extension for an image MIME type, defaulting to
// .png, the format both generation backends return.
func ExtForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// MIMEForKey is the inverse of ExtForMIME.
func MIMEForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
