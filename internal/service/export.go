package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/export"
	"github.com/vbonduro/facet/internal/state"
)

var errNoExporter = errors.New("image export is not configured")

func frameFilename(id domain.FrameID) string {
	return fmt.Sprintf("frame_%d.png", id)
}

// FrameImage returns the generated image of a frame, preferring the stored
// copy over the original reference.
func (s *CompareService) FrameImage(ctx context.Context, id domain.FrameID) ([]byte, string, string, error) {
	f, ok := s.session.Snapshot().Frame(id)
	if !ok || !id.IsOutput() {
		return nil, "", "", fmt.Errorf("%w: %d", state.ErrUnknownFrame, id)
	}
	if f.Content.OutputImage == "" {
		return nil, "", "", ErrNoImage
	}

	if f.Content.OutputKey != "" && s.imageStg != nil {
		data, mimeType, err := s.readStored(ctx, f.Content.OutputKey)
		if err == nil {
			return data, mimeType, frameFilename(id), nil
		}
		s.logger.Warn("stored image unavailable, using original", "frame_id", id, "error", err)
	}

	if s.exporter == nil {
		return nil, "", "", errNoExporter
	}
	data, mimeType, err := s.exporter.Single(ctx, f.Content.OutputImage)
	if err != nil {
		return nil, "", "", err
	}
	return data, mimeType, frameFilename(id), nil
}

func (s *CompareService) readStored(ctx context.Context, key string) ([]byte, string, error) {
	rc, mimeType, err := s.imageStg.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			s.logger.Error("failed to close stored image", "error", err)
		}
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read stored image: %w", err)
	}
	return data, mimeType, nil
}

// OutputImages lists the generated image of every output frame that has one.
func (s *CompareService) OutputImages() []export.Image {
	var images []export.Image
	for _, f := range s.session.Snapshot().Frames {
		if !f.ID.IsOutput() || f.Content.OutputImage == "" {
			continue
		}
		images = append(images, export.Image{Ref: f.Content.OutputImage, Filename: frameFilename(f.ID)})
	}
	return images
}

// ExportArchive writes a zip of every generated image to w.
func (s *CompareService) ExportArchive(ctx context.Context, w io.Writer) (int, error) {
	if s.exporter == nil {
		return 0, errNoExporter
	}
	images := s.OutputImages()
	if len(images) == 0 {
		return 0, export.ErrNothingToExport
	}
	return s.exporter.Archive(ctx, w, images)
}
