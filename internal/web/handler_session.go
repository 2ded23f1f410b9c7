package web

import (
	"net/http"

	"github.com/vbonduro/facet/internal/state"
)

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w)
}

type keysRequest struct {
	APIKey       *string `json:"api_key"`
	WavespeedKey *string `json:"wavespeed_key"`
}

// handleSetKeys stores the keys present in the body. An empty string clears
// a key.
func (s *Server) handleSetKeys(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	sess := s.service.Session()
	if req.APIKey != nil {
		sess.SetAPIKey(*req.APIKey)
	}
	if req.WavespeedKey != nil {
		sess.SetWavespeedKey(*req.WavespeedKey)
	}
	s.writeState(w)
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var patch state.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.service.Session().ApplySettings(patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w)
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSetInputText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	s.service.Session().SetInputText(req.Text)
	s.writeState(w)
}

func (s *Server) handleToggleInputMode(w http.ResponseWriter, r *http.Request) {
	s.service.Session().ToggleInputMode()
	s.writeState(w)
}

func (s *Server) handleClearImage(w http.ResponseWriter, r *http.Request) {
	s.service.Session().ClearInputImage()
	s.writeState(w)
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleSetPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.service.Session().SetPrompt(id, req.Prompt); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.service.Session().ToggleFlip(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleResetFrame(w http.ResponseWriter, r *http.Request) {
	id, err := parseFrameID(r, "id")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.service.Session().ResetFrame(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	s.service.Session().ResetAll()
	s.writeState(w)
}
