// Package clock converts elapsed wall time into logical frame entries at a
// configurable rational frame rate and implements the playback state machine.
//
// Advance returns one Entry per whole frame crossed, in traversal order, so a
// caller that ticks rarely with a large elapsed time still observes every
// intermediate frame.
package clock

import (
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/cadence/internal/model"
)

var (
	// ErrInvalidFrameCount is returned for a total frame count below 1.
	ErrInvalidFrameCount = errors.New("total frames must be >= 1")
	// ErrInvalidLoopMode is returned for an unknown loop mode.
	ErrInvalidLoopMode = errors.New("invalid loop mode")
)

// maxChunk bounds each accumulator step so dt*Num cannot overflow int64.
const maxChunk = time.Second

// Entry is a frame-entry event: the playhead has moved onto Frame.
type Entry struct {
	Frame     int `json:"frame"`
	Direction int `json:"direction"`
}

// Clock is the playback clock. It is not safe for concurrent use; the engine
// serialises access.
type Clock struct {
	state model.PlaybackState
	frame int
	total int
	rate  Rate
	loop  model.LoopMode
	dir   int

	// acc is elapsed time scaled by rate.Num; one frame is rate.Den seconds
	// in the same units, which keeps NTSC-style rates exact.
	acc int64

	// pending is set when the current frame was reached outside of playback
	// (a seek while paused or stopped) and has not been entered yet.
	pending bool

	// ended is set when a Once timeline stopped on its last frame.
	ended bool
}

// New creates a stopped clock at frame 1. The first frame is pending, so the
// first Play enters it.
func New(total int, rate Rate, loop model.LoopMode) (*Clock, error) {
	c := &Clock{
		state:   model.StateStopped,
		frame:   1,
		total:   1,
		rate:    Film,
		loop:    model.LoopOnce,
		dir:     1,
		pending: true,
	}
	if err := c.SetTotalFrames(total); err != nil {
		return nil, err
	}
	if err := c.SetRate(rate); err != nil {
		return nil, err
	}
	if err := c.SetLoopMode(loop); err != nil {
		return nil, err
	}
	return c, nil
}

// State returns the playback state.
func (c *Clock) State() model.PlaybackState { return c.state }

// Frame returns the current frame.
func (c *Clock) Frame() int { return c.frame }

// TotalFrames returns the timeline length in frames.
func (c *Clock) TotalFrames() int { return c.total }

// Rate returns the frame rate.
func (c *Clock) Rate() Rate { return c.rate }

// Loop returns the loop mode.
func (c *Clock) Loop() model.LoopMode { return c.loop }

// Direction returns +1 when playing forward and -1 when a ping-pong timeline
// is playing backward.
func (c *Clock) Direction() int { return c.dir }

// Pending reports whether the current frame awaits its entry event.
func (c *Clock) Pending() bool { return c.pending }

// Play starts or resumes playback. Resuming keeps the sub-frame remainder.
// If the current frame is pending, its entry is returned. Playing a timeline
// that ran off its end rewinds to frame 1 first.
func (c *Clock) Play() (Entry, bool) {
	if c.state == model.StatePlaying {
		return Entry{}, false
	}
	if c.state == model.StateStopped && c.ended {
		c.frame = 1
		c.dir = 1
		c.pending = true
	}
	c.ended = false
	c.state = model.StatePlaying
	if !c.pending {
		return Entry{}, false
	}
	c.pending = false
	return Entry{Frame: c.frame, Direction: c.dir}, true
}

// Pause suspends playback. It reports whether the state changed.
func (c *Clock) Pause() bool {
	if c.state != model.StatePlaying {
		return false
	}
	c.state = model.StatePaused
	return true
}

// Stop rewinds to frame 1 and clears the accumulator. The caller is
// responsible for entering frame 1 as part of re-initialisation.
func (c *Clock) Stop() {
	c.state = model.StateStopped
	c.frame = 1
	c.dir = 1
	c.acc = 0
	c.pending = false
	c.ended = false
}

// Seek moves the playhead to frame clamped to [1, total]. While playing the
// target is entered immediately; otherwise it becomes pending until Play.
func (c *Clock) Seek(frame int) (Entry, bool) {
	c.frame = clamp(frame, 1, c.total)
	c.acc = 0
	c.ended = false
	if c.state == model.StatePlaying {
		c.pending = false
		return Entry{Frame: c.frame, Direction: c.dir}, true
	}
	c.pending = true
	return Entry{}, false
}

// SetRate changes the frame rate and resets the accumulator so that a rate
// change never causes a frame jump.
func (c *Clock) SetRate(r Rate) error {
	if err := r.Validate(); err != nil {
		return err
	}
	c.rate = r
	c.acc = 0
	return nil
}

// SetLoopMode changes the loop mode. Leaving ping-pong resets the direction
// to forward.
func (c *Clock) SetLoopMode(m model.LoopMode) error {
	switch m {
	case model.LoopOnce, model.LoopLoop, model.LoopPingPong:
	default:
		return fmt.Errorf("%q: %w", m, ErrInvalidLoopMode)
	}
	c.loop = m
	if m != model.LoopPingPong {
		c.dir = 1
	}
	return nil
}

// SetTotalFrames changes the timeline length, clamping the playhead.
func (c *Clock) SetTotalFrames(n int) error {
	if n < 1 {
		return fmt.Errorf("%d: %w", n, ErrInvalidFrameCount)
	}
	c.total = n
	if c.frame > n {
		c.frame = n
	}
	return nil
}

// Advance adds dt of wall time and returns the frames entered as a result.
// Negative or zero dt and non-playing states produce no entries. A Once
// timeline stops as it enters its last frame; the remainder of dt is dropped.
func (c *Clock) Advance(dt time.Duration) []Entry {
	if c.state != model.StatePlaying || dt <= 0 {
		return nil
	}

	var entries []Entry
	threshold := c.rate.Den * int64(time.Second)
	for dt > 0 && c.state == model.StatePlaying {
		chunk := min(dt, maxChunk)
		dt -= chunk
		c.acc += int64(chunk) * c.rate.Num
		for c.acc >= threshold && c.state == model.StatePlaying {
			c.acc -= threshold
			if e, ok := c.step(); ok {
				entries = append(entries, e)
			}
		}
	}
	return entries
}

// step moves the playhead by one frame according to the loop mode.
func (c *Clock) step() (Entry, bool) {
	switch c.loop {
	case model.LoopLoop:
		c.frame++
		if c.frame > c.total {
			c.frame = 1
		}
	case model.LoopPingPong:
		if c.dir > 0 && c.frame >= c.total {
			c.dir = -1
		} else if c.dir < 0 && c.frame <= 1 {
			c.dir = 1
		}
		c.frame = clamp(c.frame+c.dir, 1, c.total)
	default:
		if c.frame >= c.total {
			c.endOfTimeline()
			return Entry{}, false
		}
		c.frame++
		if c.frame >= c.total {
			c.endOfTimeline()
		}
	}
	return Entry{Frame: c.frame, Direction: c.dir}, true
}

// endOfTimeline stops a Once timeline in place; the frame is not rewound.
func (c *Clock) endOfTimeline() {
	c.state = model.StateStopped
	c.acc = 0
	c.pending = false
	c.ended = true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
