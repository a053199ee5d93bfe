package engine

import (
	"github.com/seantiz/cadence/internal/clip"
	"github.com/seantiz/cadence/internal/model"
)

// Edits below mutate clip data between ticks. Published snapshots own their
// value maps, so an edit never alters a snapshot that was already published.

// AddClip registers an empty clip.
func (e *Engine) AddClip(id string, duration int, loop model.LoopMode) error {
	c, err := clip.New(id, duration, loop)
	if err != nil {
		return &CommandError{Command: "add_clip", Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.clips.Register(c); err != nil {
		return &CommandError{Command: "add_clip", Err: err}
	}
	return nil
}

// PutClip adds or replaces a fully built clip. The engine keeps its own copy.
func (e *Engine) PutClip(c *clip.Clip) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clips.Put(c.Clone())
}

// RemoveClip unregisters a clip.
func (e *Engine) RemoveClip(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.clips.Remove(id); err != nil {
		return &CommandError{Command: "remove_clip", Err: err}
	}
	return nil
}

// Clip returns a copy of the clip registered under id.
func (e *Engine) Clip(id string) (*clip.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.clips.Get(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Clips lists the registered clips.
func (e *Engine) Clips() []clip.ClipInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clips.List()
}

// UpsertKeyframe inserts or replaces a keyframe on a clip property.
func (e *Engine) UpsertKeyframe(clipID, property string, k clip.Keyframe) error {
	return e.editClip("upsert_keyframe", clipID, func(c *clip.Clip) error {
		return c.UpsertKeyframe(property, k)
	})
}

// RemoveKeyframe removes the keyframe at frame from a clip property.
func (e *Engine) RemoveKeyframe(clipID, property string, frame int) error {
	return e.editClip("remove_keyframe", clipID, func(c *clip.Clip) error {
		return c.RemoveKeyframe(property, frame)
	})
}

// UpsertColorKeyframe inserts or replaces a keyframe on a clip color property.
func (e *Engine) UpsertColorKeyframe(clipID, property string, k clip.ColorKeyframe) error {
	return e.editClip("upsert_color_keyframe", clipID, func(c *clip.Clip) error {
		return c.UpsertColorKeyframe(property, k)
	})
}

// RemoveColorKeyframe removes the color keyframe at frame.
func (e *Engine) RemoveColorKeyframe(clipID, property string, frame int) error {
	return e.editClip("remove_color_keyframe", clipID, func(c *clip.Clip) error {
		return c.RemoveColorKeyframe(property, frame)
	})
}

func (e *Engine) editClip(name, clipID string, edit func(*clip.Clip) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.clips.Get(clipID)
	if err != nil {
		return &CommandError{Command: name, Err: err}
	}
	if err := edit(c); err != nil {
		return &CommandError{Command: name, Err: err}
	}
	return nil
}
