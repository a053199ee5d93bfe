package model

import (
	"fmt"
	"strings"
	"time"
)

// PlaybackState is the transport state of a timeline.
type PlaybackState string

// Playback state constants.
const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// LoopMode governs how the playhead behaves at the last frame.
type LoopMode string

// Loop mode constants.
const (
	LoopOnce     LoopMode = "once"
	LoopLoop     LoopMode = "loop"
	LoopPingPong LoopMode = "pingpong"
)

// Snapshot trigger constants describe why a snapshot was published.
const (
	TriggerEnter = "enter"
	TriggerStop  = "stop"
	TriggerSeek  = "seek"
)

// Console line kinds. Timeouts are reported separately from runtime errors.
const (
	ConsoleLog     = "log"
	ConsoleError   = "error"
	ConsoleTimeout = "timeout"
)

// validTransitions maps each state to the set of states it may transition to.
// Stop is reachable from every state, including Stopped itself (re-initialisation).
var validTransitions = map[PlaybackState]map[PlaybackState]bool{
	StateStopped: {
		StatePlaying: true,
		StateStopped: true,
	},
	StatePlaying: {
		StatePaused:  true,
		StateStopped: true,
	},
	StatePaused: {
		StatePlaying: true,
		StateStopped: true,
	},
}

// ValidTransition reports whether transitioning from one state to another is allowed.
func ValidTransition(from, to PlaybackState) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ParseLoopMode parses a loop mode name. Matching is case-insensitive and
// accepts "ping-pong" as an alias.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "once", "":
		return LoopOnce, nil
	case "loop":
		return LoopLoop, nil
	case "pingpong", "ping-pong":
		return LoopPingPong, nil
	default:
		return "", fmt.Errorf("unknown loop mode %q", s)
	}
}

// ConsoleLine is one line written by a frame script, or an error report
// produced on its behalf.
type ConsoleLine struct {
	Session string    `json:"session"`
	Frame   int       `json:"frame"`
	Kind    string    `json:"kind"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

// FrameSnapshot is the immutable result of entering a frame. The engine never
// mutates a snapshot after publishing it; maps are owned by the snapshot.
type FrameSnapshot struct {
	Session  string             `json:"session"`
	Seq      uint64             `json:"seq"`
	Frame    int                `json:"frame"`
	Timecode string             `json:"timecode"`
	State    PlaybackState      `json:"state"`
	FPS      float64            `json:"fps"`
	Trigger  string             `json:"trigger"`
	Values   map[string]float64 `json:"values"`
	Colors   map[string]string  `json:"colors,omitempty"`
	Console  []ConsoleLine      `json:"console,omitempty"`
}

// Session is a persisted record of one playback session: the span between two
// transitions into the stopped state.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Lines     int        `json:"lines"`
	Errors    int        `json:"errors"`
}

// StoredConsoleLine is a console line as persisted by the store.
type StoredConsoleLine struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Frame     int       `json:"frame"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
