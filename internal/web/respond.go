package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/export"
	"github.com/vbonduro/facet/internal/imagestore"
	"github.com/vbonduro/facet/internal/service"
	"github.com/vbonduro/facet/internal/state"
	"github.com/vbonduro/facet/internal/store"
)

const maxJSONBody = 1 << 20

// stateView is the session as clients see it.
type stateView struct {
	state.Snapshot
	Titles []string `json:"titles"`
}

func newStateView(snap state.Snapshot) stateView {
	return stateView{Snapshot: snap, Titles: service.Titles(snap)}
}

type errorBody struct {
	Error string `json:"error"`
}

var (
	badRequestErrors = []error{
		service.ErrMissingAPIKey,
		service.ErrMissingInputImage,
		service.ErrNoPrompt,
		service.ErrNoResult,
		service.ErrNothingToSave,
		service.ErrMissingName,
		service.ErrWrongItemType,
		state.ErrInvalidSettings,
		state.ErrNotOutputFrame,
	}
	conflictErrors = []error{
		store.ErrLibraryFull,
		state.ErrAnalysisRunning,
	}
	notFoundErrors = []error{
		state.ErrUnknownFrame,
		store.ErrNotFound,
		imagestore.ErrNotFound,
		service.ErrNoImage,
		export.ErrNothingToExport,
	}
)

func matches(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps a service error to an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case matches(err, badRequestErrors):
		return http.StatusBadRequest
	case matches(err, conflictErrors):
		return http.StatusConflict
	case matches(err, notFoundErrors):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeState(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, newStateView(s.service.Session().Snapshot()))
}

// writeError answers with {"error": msg}. Internal failures are logged and
// reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	s.writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parseFrameID reads a frame id path variable.
func parseFrameID(r *http.Request, name string) (domain.FrameID, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, fmt.Errorf("invalid frame id %q", r.PathValue(name))
	}
	return domain.FrameID(n), nil
}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
