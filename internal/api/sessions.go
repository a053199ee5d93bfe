package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/cadence/internal/model"
)

// listSessionsResponse wraps the paginated list response.
type listSessionsResponse struct {
	Sessions []*model.Session `json:"sessions"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// sessionConsoleResponse is the JSON response for GET /v1/sessions/{id}/console.
type sessionConsoleResponse struct {
	SessionID string                    `json:"session_id"`
	Lines     []model.StoredConsoleLine `json:"lines"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	sessions, total, err := s.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list sessions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}

	s.writeJSON(w, http.StatusOK, listSessionsResponse{
		Sessions: sessions,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetSessionConsole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		s.writeEngineError(w, err)
		return
	}

	lines, err := s.store.GetConsoleLines(r.Context(), id)
	if err != nil {
		s.logger.Error("get console lines", "session", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get console lines")
		return
	}
	if lines == nil {
		lines = []model.StoredConsoleLine{}
	}

	s.writeJSON(w, http.StatusOK, sessionConsoleResponse{
		SessionID: id,
		Lines:     lines,
	})
}
