// Package sandbox runs per-frame user scripts under a time and memory budget.
//
// A Runner never lets a script fault escape: interpreter errors, host panics
// and budget overruns are all reported through the returned Outcome.
package sandbox

import (
	"context"
	"time"

	"github.com/seantiz/cadence/internal/model"
)

// Kind classifies the result of one script invocation.
type Kind string

// Outcome kinds.
const (
	Completed    Kind = "completed"
	RuntimeError Kind = "runtime_error"
	TimedOut     Kind = "timed_out"
)

// Default budget values.
const (
	DefaultTimeout       = 5 * time.Millisecond
	DefaultMaxAllocBytes = 50 << 20
	DefaultCheckInterval = time.Millisecond
)

// Budget is the ceiling enforced on a single invocation. Exceeding either
// limit aborts the script at its next checkpoint with a TimedOut outcome.
//
// Heap growth is sampled every CheckInterval and the interrupt lands between
// VM instructions, so MaxAllocBytes is a soft limit: one builtin call such as
// "x".repeat(1 << 28) can allocate past it before the script is stopped.
type Budget struct {
	Timeout       time.Duration
	MaxAllocBytes uint64
	CheckInterval time.Duration
}

// DefaultBudget returns the default 5ms / 50MB budget.
func DefaultBudget() Budget {
	return Budget{
		Timeout:       DefaultTimeout,
		MaxAllocBytes: DefaultMaxAllocBytes,
		CheckInterval: DefaultCheckInterval,
	}
}

func (b Budget) withDefaults() Budget {
	if b.Timeout <= 0 {
		b.Timeout = DefaultTimeout
	}
	if b.CheckInterval <= 0 {
		b.CheckInterval = DefaultCheckInterval
	}
	if b.CheckInterval > b.Timeout {
		b.CheckInterval = b.Timeout
	}
	return b
}

// Controller lets a script drive the transport. Implementations must not
// block; the engine queues these requests for its next tick.
type Controller interface {
	Play()
	Pause()
	Stop()
	GotoAndPlay(frame int)
	GotoAndStop(frame int)
	CurrentFrame() int
	TotalFrames() int
}

// Request describes one script invocation.
type Request struct {
	Source      string
	Frame       int
	TotalFrames int
	FPS         float64

	// Globals persists across invocations within a playback session.
	Globals *GlobalStore

	// Props is the interpolated property snapshot for the frame. Scripts may
	// overwrite or add numeric entries; the map is modified in place.
	Props map[string]float64

	// Timeline is optional. When nil the script has no timeline binding.
	Timeline Controller
}

// Outcome is the result of one invocation. Lines holds everything the script
// logged before it finished or was aborted.
type Outcome struct {
	Kind     Kind                `json:"kind"`
	Message  string              `json:"message,omitempty"`
	Lines    []model.ConsoleLine `json:"lines,omitempty"`
	Duration time.Duration       `json:"duration"`
}

// Runner executes frame scripts.
type Runner interface {
	Run(ctx context.Context, req Request) Outcome
}
