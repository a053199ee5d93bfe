package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/seantiz/cadence/internal/clock"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/model"
)

// Transport commands are queued and applied on the next tick, so their
// handlers answer 202 with the state as of the request.

type seekRequest struct {
	Frame int `json:"frame"`
}

// fpsRequest accepts the rate as a number (24, 29.97) or a string ("ntsc",
// "30000/1001").
type fpsRequest struct {
	FPS json.RawMessage `json:"fps"`
}

type loopRequest struct {
	Mode string `json:"mode"`
}

type totalFramesRequest struct {
	TotalFrames int `json:"total_frames"`
}

type commandResponse struct {
	Command string       `json:"command"`
	State   engine.State `json:"state"`
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.CurrentState())
}

func (s *Server) handlePlay(w http.ResponseWriter, _ *http.Request) {
	s.engine.Play()
	s.accepted(w, "play")
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.engine.Pause()
	s.accepted(w, "pause")
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.Stop()
	s.accepted(w, "stop")
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.Seek(req.Frame)
	s.accepted(w, "seek")
}

func (s *Server) handleSetFPS(w http.ResponseWriter, r *http.Request) {
	var req fpsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rate, err := parseRateField(req.FPS)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetFPS(rate); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.accepted(w, "set_fps")
}

func (s *Server) handleSetLoop(w http.ResponseWriter, r *http.Request) {
	var req loopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Mode == "" {
		s.writeError(w, http.StatusBadRequest, "mode is required")
		return
	}
	mode, err := model.ParseLoopMode(req.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetLoopMode(mode); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.accepted(w, "set_loop")
}

func (s *Server) handleSetTotalFrames(w http.ResponseWriter, r *http.Request) {
	var req totalFramesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetTotalFrames(req.TotalFrames); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.accepted(w, "set_total_frames")
}

func (s *Server) accepted(w http.ResponseWriter, command string) {
	s.writeJSON(w, http.StatusAccepted, commandResponse{
		Command: command,
		State:   s.engine.CurrentState(),
	})
}

func parseRateField(raw json.RawMessage) (clock.Rate, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return clock.Rate{}, err
		}
	}
	if text == "" || text == "null" {
		return clock.Rate{}, clock.ErrInvalidRate
	}
	return clock.ParseRate(text)
}
