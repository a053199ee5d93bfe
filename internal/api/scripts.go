package api

import (
	"net/http"

	"github.com/seantiz/cadence/internal/engine"
)

type bindScriptRequest struct {
	Source string `json:"source"`
}

type listScriptsResponse struct {
	Scripts []engine.ScriptBinding `json:"scripts"`
}

func (s *Server) handleListScripts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listScriptsResponse{Scripts: s.engine.Scripts()})
}

// handleBindScript binds a script to a frame. The source is compiled up front
// so that syntax errors are reported here rather than on frame entry.
func (s *Server) handleBindScript(w http.ResponseWriter, r *http.Request) {
	frame, err := frameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req bindScriptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.BindScript(frame, req.Source); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, engine.ScriptBinding{Frame: frame, Source: req.Source})
}

func (s *Server) handleUnbindScript(w http.ResponseWriter, r *http.Request) {
	frame, err := frameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.UnbindScript(frame); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetGlobals(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Globals())
}
