package engine

import (
	"fmt"

	"github.com/seantiz/cadence/internal/clock"
	"github.com/seantiz/cadence/internal/model"
)

type commandKind string

const (
	cmdPlay     commandKind = "play"
	cmdPause    commandKind = "pause"
	cmdStop     commandKind = "stop"
	cmdSeek     commandKind = "seek"
	cmdSetRate  commandKind = "set_fps"
	cmdSetLoop  commandKind = "set_loop_mode"
	cmdSetTotal commandKind = "set_total_frames"
)

// command is a queued transport request.
type command struct {
	kind  commandKind
	frame int
	rate  clock.Rate
	loop  model.LoopMode
}

// CommandError reports a transport or edit command rejected at the engine
// boundary. It wraps the underlying sentinel error.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// enqueue appends c to the command queue. It does not take the engine lock,
// so it is safe to call from a script running inside a tick.
func (e *Engine) enqueue(c command) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	e.queue = append(e.queue, c)
}

// drain removes and returns all queued commands.
func (e *Engine) drain() []command {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	cmds := e.queue
	e.queue = nil
	return cmds
}

// Play queues a play command.
func (e *Engine) Play() { e.enqueue(command{kind: cmdPlay}) }

// Pause queues a pause command.
func (e *Engine) Pause() { e.enqueue(command{kind: cmdPause}) }

// Stop queues a stop command. Applying it rewinds to frame 1, clears the
// global store, starts a new session and re-runs frame 1's script.
func (e *Engine) Stop() { e.enqueue(command{kind: cmdStop}) }

// Seek queues a seek. Out-of-range frames are clamped when applied.
func (e *Engine) Seek(frame int) { e.enqueue(command{kind: cmdSeek, frame: frame}) }

// SetFPS validates r and queues a rate change.
func (e *Engine) SetFPS(r clock.Rate) error {
	if err := r.Validate(); err != nil {
		return &CommandError{Command: string(cmdSetRate), Err: err}
	}
	e.enqueue(command{kind: cmdSetRate, rate: r})
	return nil
}

// SetLoopMode validates m and queues a loop mode change.
func (e *Engine) SetLoopMode(m model.LoopMode) error {
	switch m {
	case model.LoopOnce, model.LoopLoop, model.LoopPingPong:
	default:
		return &CommandError{Command: string(cmdSetLoop), Err: fmt.Errorf("%q: %w", m, clock.ErrInvalidLoopMode)}
	}
	e.enqueue(command{kind: cmdSetLoop, loop: m})
	return nil
}

// SetTotalFrames validates n and queues a timeline length change.
func (e *Engine) SetTotalFrames(n int) error {
	if n < 1 {
		return &CommandError{Command: string(cmdSetTotal), Err: fmt.Errorf("%d: %w", n, clock.ErrInvalidFrameCount)}
	}
	e.enqueue(command{kind: cmdSetTotal, frame: n})
	return nil
}

// scriptTimeline is the timeline binding handed to frame scripts. Its
// commands take effect on the next tick. Reads happen while the engine lock
// is held by the running tick.
type scriptTimeline struct {
	e *Engine
}

func (t scriptTimeline) Play()  { t.e.Play() }
func (t scriptTimeline) Pause() { t.e.Pause() }
func (t scriptTimeline) Stop()  { t.e.Stop() }

func (t scriptTimeline) GotoAndPlay(frame int) {
	t.e.Seek(frame)
	t.e.Play()
}

func (t scriptTimeline) GotoAndStop(frame int) {
	t.e.Pause()
	t.e.Seek(frame)
}

func (t scriptTimeline) CurrentFrame() int { return t.e.clock.Frame() }
func (t scriptTimeline) TotalFrames() int  { return t.e.clock.TotalFrames() }
