package web

import (
	"io"
	"net/http"

	"github.com/vbonduro/facet/internal/datauri"
)

// maxImageSize caps an uploaded input image.
const maxImageSize = 20 << 20

// handleUploadImage stores an uploaded image on the input frame as a data
// URI. The declared content type is ignored; the bytes decide.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+1<<20)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		s.badRequest(w, "failed to parse form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.badRequest(w, "image file required")
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("read upload failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to read file"})
		return
	}

	uri, mimeType, err := datauri.EncodeImage(imageData)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	s.service.Session().SetInputImage(uri)
	s.logger.Info("input image uploaded", "mime_type", mimeType, "bytes", len(imageData))
	s.writeState(w)
}
