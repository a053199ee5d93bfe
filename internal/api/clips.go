package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/cadence/internal/clip"
	"github.com/seantiz/cadence/internal/easing"
	"github.com/seantiz/cadence/internal/model"
)

type putClipRequest struct {
	Duration int    `json:"duration"`
	Loop     string `json:"loop"`
}

// keyframeRequest carries a numeric keyframe. Easing is a name such as
// "cubic-inout" or "bezier(0.42,0,0.58,1)"; the parameters tune back and
// elastic curves.
type keyframeRequest struct {
	Value     *float64 `json:"value"`
	Easing    string   `json:"easing"`
	Overshoot float64  `json:"overshoot"`
	Amplitude float64  `json:"amplitude"`
	Period    float64  `json:"period"`
}

type colorKeyframeRequest struct {
	Color  string `json:"color"`
	Easing string `json:"easing"`
}

// clipResponse is the full description of one clip.
type clipResponse struct {
	ID       string                          `json:"id"`
	Duration int                             `json:"duration"`
	Loop     model.LoopMode                  `json:"loop"`
	Tracks   map[string][]clip.Keyframe      `json:"tracks"`
	Colors   map[string][]clip.ColorKeyframe `json:"colors,omitempty"`
}

type listClipsResponse struct {
	Clips []clip.ClipInfo `json:"clips"`
}

func newClipResponse(c *clip.Clip) clipResponse {
	resp := clipResponse{
		ID:       c.ID,
		Duration: c.Duration,
		Loop:     c.Loop,
		Tracks:   make(map[string][]clip.Keyframe),
	}
	for _, p := range c.Properties() {
		if t, ok := c.Track(p); ok {
			resp.Tracks[p] = t.Keyframes()
		}
	}
	if props := c.ColorProperties(); len(props) > 0 {
		resp.Colors = make(map[string][]clip.ColorKeyframe, len(props))
		for _, p := range props {
			if t, ok := c.ColorTrack(p); ok {
				resp.Colors[p] = t.Keyframes()
			}
		}
	}
	return resp
}

func (s *Server) handleListClips(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listClipsResponse{Clips: s.engine.Clips()})
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.Clip(chi.URLParam(r, "clip"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newClipResponse(c))
}

// handlePutClip creates a clip, or changes the duration and loop mode of an
// existing one while keeping its tracks.
func (s *Server) handlePutClip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clip")
	var req putClipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loop, err := model.ParseLoopMode(req.Loop)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Duration < 1 {
		s.writeError(w, http.StatusBadRequest, clip.ErrInvalidDuration.Error())
		return
	}

	existing, err := s.engine.Clip(id)
	switch {
	case errors.Is(err, clip.ErrClipNotFound):
		if err := s.engine.AddClip(id, req.Duration, loop); err != nil {
			s.writeEngineError(w, err)
			return
		}
		c, err := s.engine.Clip(id)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, newClipResponse(c))
	case err != nil:
		s.writeEngineError(w, err)
	default:
		existing.Duration = req.Duration
		existing.Loop = loop
		s.engine.PutClip(existing)
		s.writeJSON(w, http.StatusOK, newClipResponse(existing))
	}
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveClip(chi.URLParam(r, "clip")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutKeyframe(w http.ResponseWriter, r *http.Request) {
	frame, err := frameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req keyframeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	spec, err := easing.Parse(req.Easing)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spec.Overshoot, spec.Amplitude, spec.Period = req.Overshoot, req.Amplitude, req.Period

	k := clip.Keyframe{Frame: frame, Value: *req.Value, Easing: spec}
	if err := s.engine.UpsertKeyframe(chi.URLParam(r, "clip"), chi.URLParam(r, "property"), k); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, k)
}

func (s *Server) handleDeleteKeyframe(w http.ResponseWriter, r *http.Request) {
	frame, err := frameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.RemoveKeyframe(chi.URLParam(r, "clip"), chi.URLParam(r, "property"), frame); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutColorKeyframe(w http.ResponseWriter, r *http.Request) {
	frame, err := frameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req colorKeyframeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spec, err := easing.Parse(req.Easing)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	k := clip.ColorKeyframe{Frame: frame, Hex: req.Color, Easing: spec}
	if err := s.engine.UpsertColorKeyframe(chi.URLParam(r, "clip"), chi.URLParam(r, "property"), k); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, k)
}

func (s *Server) handleDeleteColorKeyframe(w http.ResponseWriter, r *http.Request) {
	frame, err := frameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.RemoveColorKeyframe(chi.URLParam(r, "clip"), chi.URLParam(r, "property"), frame); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
