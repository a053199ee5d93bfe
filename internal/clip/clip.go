// Package clip holds keyframe tracks and the animation clips that bundle
// them. Clips own their tracks; tracks never reference their clip, and the
// engine refers to clips by id through a Registry.
package clip

import (
	"errors"
	"fmt"
	"sort"

	"github.com/seantiz/cadence/internal/model"
)

// ErrInvalidDuration is returned when a clip duration is below 1.
var ErrInvalidDuration = errors.New("clip duration must be >= 1")

// Clip is a named bundle of tracks with its own duration and loop mode.
type Clip struct {
	ID       string
	Duration int
	Loop     model.LoopMode

	tracks map[string]*Track
	colors map[string]*ColorTrack
}

// New creates an empty clip.
func New(id string, duration int, loop model.LoopMode) (*Clip, error) {
	if id == "" {
		return nil, errors.New("clip id is required")
	}
	if duration < 1 {
		return nil, fmt.Errorf("clip %q: %w", id, ErrInvalidDuration)
	}
	if loop == "" {
		loop = model.LoopOnce
	}
	return &Clip{
		ID:       id,
		Duration: duration,
		Loop:     loop,
		tracks:   make(map[string]*Track),
		colors:   make(map[string]*ColorTrack),
	}, nil
}

// SetTrack installs t, replacing any track for the same property.
func (c *Clip) SetTrack(t *Track) {
	c.tracks[t.Property()] = t
}

// SetColorTrack installs t, replacing any color track for the same property.
func (c *Clip) SetColorTrack(t *ColorTrack) {
	c.colors[t.Property()] = t
}

// Track returns the numeric track for property.
func (c *Clip) Track(property string) (*Track, bool) {
	t, ok := c.tracks[property]
	return t, ok
}

// ColorTrack returns the color track for property.
func (c *Clip) ColorTrack(property string) (*ColorTrack, bool) {
	t, ok := c.colors[property]
	return t, ok
}

// Properties returns the numeric property ids in sorted order.
func (c *Clip) Properties() []string {
	out := make([]string, 0, len(c.tracks))
	for p := range c.tracks {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ColorProperties returns the color property ids in sorted order.
func (c *Clip) ColorProperties() []string {
	out := make([]string, 0, len(c.colors))
	for p := range c.colors {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// UpsertKeyframe inserts or replaces a keyframe, creating the track if needed.
func (c *Clip) UpsertKeyframe(property string, k Keyframe) error {
	t, ok := c.tracks[property]
	if !ok {
		t = &Track{property: property}
	}
	if err := t.Upsert(k); err != nil {
		return err
	}
	c.tracks[property] = t
	return nil
}

// RemoveKeyframe deletes a keyframe. A track left empty is dropped.
func (c *Clip) RemoveKeyframe(property string, frame int) error {
	t, ok := c.tracks[property]
	if !ok {
		return &FrameError{Property: property, Frame: frame, Err: ErrKeyframeNotFound}
	}
	if err := t.Remove(frame); err != nil {
		return err
	}
	if t.Len() == 0 {
		delete(c.tracks, property)
	}
	return nil
}

// UpsertColorKeyframe inserts or replaces a color keyframe, creating the track
// if needed.
func (c *Clip) UpsertColorKeyframe(property string, k ColorKeyframe) error {
	t, ok := c.colors[property]
	if !ok {
		t = &ColorTrack{property: property}
	}
	if err := t.Upsert(k); err != nil {
		return err
	}
	c.colors[property] = t
	return nil
}

// RemoveColorKeyframe deletes a color keyframe. A track left empty is dropped.
func (c *Clip) RemoveColorKeyframe(property string, frame int) error {
	t, ok := c.colors[property]
	if !ok {
		return &FrameError{Property: property, Frame: frame, Err: ErrKeyframeNotFound}
	}
	if err := t.Remove(frame); err != nil {
		return err
	}
	if len(t.keys) == 0 {
		delete(c.colors, property)
	}
	return nil
}

// LocalFrame maps a timeline frame into clip time according to the clip's
// loop mode: Once holds at Duration, Loop wraps, PingPong reflects.
func (c *Clip) LocalFrame(frame int) int {
	if frame < 1 {
		frame = 1
	}
	if frame <= c.Duration {
		return frame
	}
	switch c.Loop {
	case model.LoopLoop:
		return (frame-1)%c.Duration + 1
	case model.LoopPingPong:
		if c.Duration == 1 {
			return 1
		}
		period := 2 * (c.Duration - 1)
		pos := (frame - 1) % period
		if pos < c.Duration {
			return pos + 1
		}
		return period - pos + 1
	default:
		return c.Duration
	}
}

// Evaluate returns every numeric property at frame. The map is freshly
// allocated on each call, so callers may keep or modify it.
func (c *Clip) Evaluate(frame int) map[string]float64 {
	local := c.LocalFrame(frame)
	out := make(map[string]float64, len(c.tracks))
	for p, t := range c.tracks {
		if v, err := t.Evaluate(local); err == nil {
			out[p] = v
		}
	}
	return out
}

// EvaluateColors returns every color property at frame as "#rrggbb".
func (c *Clip) EvaluateColors(frame int) map[string]string {
	local := c.LocalFrame(frame)
	out := make(map[string]string, len(c.colors))
	for p, t := range c.colors {
		if v, err := t.Evaluate(local); err == nil {
			out[p] = v
		}
	}
	return out
}

// Clone returns a deep copy of the clip.
func (c *Clip) Clone() *Clip {
	out := &Clip{
		ID:       c.ID,
		Duration: c.Duration,
		Loop:     c.Loop,
		tracks:   make(map[string]*Track, len(c.tracks)),
		colors:   make(map[string]*ColorTrack, len(c.colors)),
	}
	for p, t := range c.tracks {
		out.tracks[p] = t.clone()
	}
	for p, t := range c.colors {
		out.colors[p] = t.clone()
	}
	return out
}
