// Package export turns generated image references into downloadable files:
// one image at a time or every image bundled into a zip archive.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zip"

	"github.com/vbonduro/facet/internal/datauri"
)

var (
	ErrNothingToExport = errors.New("no images could be downloaded")
	ErrImageTooLarge   = errors.New("image exceeds download limit")
)

// DefaultCacheSize is how many fetched remote images are kept in memory.
const DefaultCacheSize = 32

// maxImageBytes caps one remote download.
var maxImageBytes int64 = 64 << 20

// Image is one file to export. Ref is a remote URL or a data URI.
type Image struct {
	Ref      string
	Filename string
}

type fetched struct {
	data     []byte
	mimeType string
}

type Exporter struct {
	client *http.Client
	cache  *lru.Cache[string, fetched]
}

func New(client *http.Client, cacheSize int) (*Exporter, error) {
	if client == nil {
		client = &http.Client{}
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, fetched](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	return &Exporter{client: client, cache: cache}, nil
}

// Single resolves ref to image bytes and their MIME type.
func (e *Exporter) Single(ctx context.Context, ref string) ([]byte, string, error) {
	if datauri.IsDataURI(ref) {
		mimeType, data, err := datauri.Decode(ref)
		if err != nil {
			return nil, "", err
		}
		return data, mimeType, nil
	}

	if f, ok := e.cache.Get(ref); ok {
		return f.data, f.mimeType, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close image response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxImageBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, maxImageBytes)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	e.cache.Add(ref, fetched{data: data, mimeType: mimeType})
	return data, mimeType, nil
}

// Archive fetches every image concurrently and writes a zip with the
// successful ones under images/. Failed images are logged and skipped. If
// none succeed nothing is written and ErrNothingToExport is returned.
func (e *Exporter) Archive(ctx context.Context, w io.Writer, images []Image) (int, error) {
	results := make([]*fetched, len(images))
	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, mimeType, err := e.Single(ctx, img.Ref)
			if err != nil {
				slog.Warn("failed to add image to archive", "filename", img.Filename, "error", err)
				return
			}
			results[i] = &fetched{data: data, mimeType: mimeType}
		}()
	}
	wg.Wait()

	zw := zip.NewWriter(w)
	written := 0
	for i, f := range results {
		if f == nil {
			continue
		}
		entry, err := zw.Create("images/" + entryName(images[i].Filename, i))
		if err != nil {
			return written, fmt.Errorf("failed to add zip entry: %w", err)
		}
		if _, err := entry.Write(f.data); err != nil {
			return written, fmt.Errorf("failed to write zip entry: %w", err)
		}
		written++
	}
	if written == 0 {
		return 0, ErrNothingToExport
	}
	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("failed to finish zip: %w", err)
	}
	return written, nil
}

// entryName keeps only the base name of filename so entries cannot escape
// the images/ folder.
func entryName(filename string, i int) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		name = fmt.Sprintf("image_%d.png", i+1)
	}
	return name
}
