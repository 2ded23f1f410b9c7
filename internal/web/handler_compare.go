package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handleAnalyze runs one comparison. It answers once every frame's analysis
// has settled; image generation may still be in progress.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Analyze(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.service.GenerateImage(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w)
}

type textResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleParagraph(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.badRequest(w, "invalid limit")
			return
		}
	}
	text, err := s.service.Paragraph(id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, textResponse{Text: text})
}

func (s *Server) handleCopyText(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	text, err := s.service.CopyText(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, textResponse{Text: text})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	data, mimeType, filename, err := s.service.FrameImage(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write image failed", "frame_id", id, "error", err)
	}
}

// handleExport builds the archive in memory so a failure can still be
// reported as an error status.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := s.service.ExportArchive(r.Context(), &buf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("gem-export-%s.zip", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("write archive failed", "images", n, "error", err)
	}
}
