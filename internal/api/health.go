package api

import (
	"net/http"

	"github.com/seantiz/cadence/internal/model"
)

type healthResponse struct {
	Status   string              `json:"status"`
	Playback model.PlaybackState `json:"playback"`
	Frame    int                 `json:"frame"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.CurrentState()
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Playback: st.Playback,
		Frame:    st.Frame,
	})
}
