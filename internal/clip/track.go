package clip

import (
	"errors"
	"fmt"
	"sort"

	"github.com/seantiz/cadence/internal/easing"
)

var (
	// ErrInvalidFrame is returned when a keyframe or clip frame is below 1.
	ErrInvalidFrame = errors.New("frame must be >= 1")
	// ErrDuplicateFrame is returned when a batch of keyframes repeats a frame.
	ErrDuplicateFrame = errors.New("duplicate keyframe frame")
	// ErrNonMonotonic is returned when a batch of keyframes is not in frame order.
	ErrNonMonotonic = errors.New("keyframe frames are not strictly increasing")
	// ErrKeyframeNotFound is returned when removing a keyframe that does not exist.
	ErrKeyframeNotFound = errors.New("keyframe not found")
	// ErrEmptyTrack is returned when evaluating a track without keyframes.
	ErrEmptyTrack = errors.New("track has no keyframes")
)

// FrameError attaches the offending frame and property to a track mutation error.
type FrameError struct {
	Property string
	Frame    int
	Err      error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("track %q frame %d: %v", e.Property, e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Keyframe is one sample of a numeric property.
type Keyframe struct {
	Frame  int         `json:"frame" yaml:"frame"`
	Value  float64     `json:"value" yaml:"value"`
	Easing easing.Spec `json:"easing" yaml:"easing"`
}

// Track is the keyframe sequence of one numeric property. Frames are strictly
// increasing in storage order.
type Track struct {
	property string
	keys     []Keyframe
}

// NewTrack builds a track from keyframes that must already be in strictly
// increasing frame order.
func NewTrack(property string, keys ...Keyframe) (*Track, error) {
	t := &Track{property: property, keys: make([]Keyframe, 0, len(keys))}
	for i, k := range keys {
		if err := t.check(k.Frame, k.Easing); err != nil {
			return nil, err
		}
		if i > 0 {
			prev := keys[i-1].Frame
			if k.Frame == prev {
				return nil, &FrameError{Property: property, Frame: k.Frame, Err: ErrDuplicateFrame}
			}
			if k.Frame < prev {
				return nil, &FrameError{Property: property, Frame: k.Frame, Err: ErrNonMonotonic}
			}
		}
		t.keys = append(t.keys, k)
	}
	return t, nil
}

// Property returns the property id the track animates.
func (t *Track) Property() string { return t.property }

// Len returns the number of keyframes.
func (t *Track) Len() int { return len(t.keys) }

// Keyframes returns a copy of the keyframes in frame order.
func (t *Track) Keyframes() []Keyframe {
	out := make([]Keyframe, len(t.keys))
	copy(out, t.keys)
	return out
}

// Upsert inserts k in frame order, replacing any keyframe at the same frame.
func (t *Track) Upsert(k Keyframe) error {
	if err := t.check(k.Frame, k.Easing); err != nil {
		return err
	}
	i := t.search(k.Frame)
	if i < len(t.keys) && t.keys[i].Frame == k.Frame {
		t.keys[i] = k
		return nil
	}
	t.keys = append(t.keys, Keyframe{})
	copy(t.keys[i+1:], t.keys[i:])
	t.keys[i] = k
	return nil
}

// Remove deletes the keyframe at frame.
func (t *Track) Remove(frame int) error {
	i := t.search(frame)
	if i >= len(t.keys) || t.keys[i].Frame != frame {
		return &FrameError{Property: t.property, Frame: frame, Err: ErrKeyframeNotFound}
	}
	t.keys = append(t.keys[:i], t.keys[i+1:]...)
	return nil
}

// Evaluate returns the property value at frame. Frames before the first
// keyframe hold its value, as do frames after the last.
func (t *Track) Evaluate(frame int) (float64, error) {
	if len(t.keys) == 0 {
		return 0, ErrEmptyTrack
	}
	k0, k1, hold := bracket(t.keys, frame, func(k Keyframe) int { return k.Frame })
	if hold {
		return k0.Value, nil
	}
	p := k0.Easing.Apply(progress(frame, k0.Frame, k1.Frame))
	return k0.Value + (k1.Value-k0.Value)*p, nil
}

func (t *Track) clone() *Track {
	return &Track{property: t.property, keys: t.Keyframes()}
}

func (t *Track) check(frame int, spec easing.Spec) error {
	if frame < 1 {
		return &FrameError{Property: t.property, Frame: frame, Err: ErrInvalidFrame}
	}
	if spec.Kind == "" {
		return nil
	}
	if err := spec.Validate(); err != nil {
		return &FrameError{Property: t.property, Frame: frame, Err: err}
	}
	return nil
}

func (t *Track) search(frame int) int {
	return sort.Search(len(t.keys), func(i int) bool { return t.keys[i].Frame >= frame })
}

// bracket finds the keyframes surrounding frame: k0 at or before it and k1
// strictly after it. hold is true when frame lies outside the keyed range, in
// which case k0 is the keyframe whose value applies.
func bracket[K any](keys []K, frame int, frameOf func(K) int) (k0, k1 K, hold bool) {
	first, last := keys[0], keys[len(keys)-1]
	if frame <= frameOf(first) {
		return first, first, true
	}
	if frame >= frameOf(last) {
		return last, last, true
	}
	// Index of the first keyframe strictly after frame.
	i := sort.Search(len(keys), func(i int) bool { return frameOf(keys[i]) > frame })
	return keys[i-1], keys[i], false
}

// progress returns the clamped normalized position of frame between f0 and f1.
func progress(frame, f0, f1 int) float64 {
	t := float64(frame-f0) / float64(f1-f0)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
