package web

import (
	"net/http"

	"github.com/vbonduro/facet/internal/domain"
)

func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	typ := domain.LibraryItemType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		s.badRequest(w, "invalid library item type")
		return
	}
	items, err := s.service.ListLibrary(r.Context(), typ)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.LibraryItem{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

type addLibraryRequest struct {
	Type    domain.LibraryItemType `json:"type"`
	Name    string                 `json:"name"`
	Content string                 `json:"content"`
}

func (s *Server) handleAddLibrary(w http.ResponseWriter, r *http.Request) {
	var req addLibraryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if !req.Type.Valid() {
		s.badRequest(w, "invalid library item type")
		return
	}
	item, err := s.service.AddToLibrary(r.Context(), req.Type, req.Name, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

type saveFrameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSaveFrame(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	var req saveFrameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	item, err := s.service.SaveFrameToLibrary(r.Context(), id, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleLoadLibrary(w http.ResponseWriter, r *http.Request) {
	frameID, err := parseFrameID(r, "frameID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.service.LoadLibraryItem(r.Context(), r.PathValue("itemID"), frameID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleRemoveLibrary(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveLibraryItem(r.Context(), r.PathValue("itemID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
