package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/seantiz/cadence/internal/clip"
	"github.com/seantiz/cadence/internal/clock"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/sandbox"
)

// DefaultTotalFrames is the timeline length used when none is configured.
const DefaultTotalFrames = 300

var (
	// ErrInvalidFrame is returned when binding a script to a frame below 1.
	ErrInvalidFrame = errors.New("frame must be >= 1")
	// ErrScriptNotFound is returned when unbinding a frame with no script.
	ErrScriptNotFound = errors.New("no script bound to frame")
	// ErrInvalidScript is returned when a script does not compile.
	ErrInvalidScript = errors.New("invalid script")
)

// Recorder receives session boundaries and console lines for persistence.
// Implementations must not block the tick.
type Recorder interface {
	StartSession(id string, at time.Time)
	EndSession(id string, at time.Time)
	Record(line model.ConsoleLine)
}

// checker is implemented by runners that can validate a script without
// running it.
type checker interface {
	Check(source string) error
}

// Config holds the initial timeline settings.
type Config struct {
	TotalFrames int
	Rate        clock.Rate
	Loop        model.LoopMode
}

// State is the externally visible transport state.
type State struct {
	Frame       int                 `json:"frame"`
	Playback    model.PlaybackState `json:"playback"`
	FPS         float64             `json:"fps"`
	Rate        clock.Rate          `json:"rate"`
	Loop        model.LoopMode      `json:"loop"`
	TotalFrames int                 `json:"total_frames"`
	Timecode    string              `json:"timecode"`
	Session     string              `json:"session"`
}

// ScriptBinding is a frame script.
type ScriptBinding struct {
	Frame  int    `json:"frame"`
	Source string `json:"source"`
}

// Engine orchestrates timeline playback. All methods are safe for concurrent
// use; ticks and edits are serialised by the engine lock.
type Engine struct {
	mu       sync.Mutex
	clock    *clock.Clock
	clips    *clip.Registry
	scripts  map[int]string
	globals  *sandbox.GlobalStore
	runner   sandbox.Runner
	recorder Recorder
	logger   *slog.Logger
	session  string
	seq      uint64
	last     model.FrameSnapshot
	hasLast  bool

	queueMu sync.Mutex
	queue   []command

	snapshots *Broker[model.FrameSnapshot]
	console   *Broker[model.ConsoleLine]
}

// NewEngine creates a stopped engine positioned at frame 1. rec may be nil.
func NewEngine(cfg Config, runner sandbox.Runner, rec Recorder, logger *slog.Logger) (*Engine, error) {
	if runner == nil {
		return nil, errors.New("engine requires a script runner")
	}
	if cfg.TotalFrames == 0 {
		cfg.TotalFrames = DefaultTotalFrames
	}
	if cfg.Rate == (clock.Rate{}) {
		cfg.Rate = clock.Film
	}
	if cfg.Loop == "" {
		cfg.Loop = model.LoopOnce
	}
	c, err := clock.New(cfg.TotalFrames, cfg.Rate, cfg.Loop)
	if err != nil {
		return nil, fmt.Errorf("create clock: %w", err)
	}
	if rec == nil {
		rec = nopRecorder{}
	}

	now := time.Now().UTC()
	e := &Engine{
		clock:     c,
		clips:     clip.NewRegistry(),
		scripts:   make(map[int]string),
		globals:   sandbox.NewGlobalStore(),
		runner:    runner,
		recorder:  rec,
		logger:    logger,
		session:   model.NewIDAt(now),
		snapshots: NewBroker[model.FrameSnapshot](),
		console:   NewBroker[model.ConsoleLine](),
	}
	rec.StartSession(e.session, now)
	return e, nil
}

// Snapshots returns the push stream of published snapshots.
func (e *Engine) Snapshots() *Broker[model.FrameSnapshot] {
	return e.snapshots
}

// Console returns the push stream of console lines.
func (e *Engine) Console() *Broker[model.ConsoleLine] {
	return e.console
}

// Close ends the current session and closes the push streams.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder.EndSession(e.session, time.Now().UTC())
	e.snapshots.Close()
	e.console.Close()
}

// Advance applies queued commands, then advances the clock by dt and enters
// every frame crossed. It returns the snapshots published during the call in
// order; none are skipped. Advance(ctx, 0) only applies queued commands.
func (e *Engine) Advance(ctx context.Context, dt time.Duration) []model.FrameSnapshot {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	var out []model.FrameSnapshot
	for _, c := range e.drain() {
		out = append(out, e.apply(ctx, c)...)
	}

	wasPlaying := e.clock.State() == model.StatePlaying
	entries := e.clock.Advance(dt)
	for i, entry := range entries {
		state := model.StatePlaying
		if i == len(entries)-1 {
			state = e.clock.State()
		}
		out = append(out, e.enter(ctx, entry.Frame, model.TriggerEnter, state))
	}

	// A Once timeline stopped on its last frame; the session ends there.
	if wasPlaying && e.clock.State() == model.StateStopped {
		e.logger.Debug("end of timeline", "frame", e.clock.Frame(), "session_id", e.session)
		e.globals.Clear()
		e.rotateSession()
	}
	return out
}

// apply executes one queued command.
func (e *Engine) apply(ctx context.Context, c command) []model.FrameSnapshot {
	from := e.clock.State()
	defer func() {
		if to := e.clock.State(); to != from {
			e.logger.Debug("playback state changed", "from", from, "to", to, "command", c.kind, "frame", e.clock.Frame())
		}
	}()

	switch c.kind {
	case cmdPlay:
		if entry, ok := e.clock.Play(); ok {
			return []model.FrameSnapshot{e.enter(ctx, entry.Frame, model.TriggerEnter, model.StatePlaying)}
		}
	case cmdPause:
		e.clock.Pause()
	case cmdStop:
		return []model.FrameSnapshot{e.stop(ctx)}
	case cmdSeek:
		if entry, ok := e.clock.Seek(c.frame); ok {
			return []model.FrameSnapshot{e.enter(ctx, entry.Frame, model.TriggerEnter, model.StatePlaying)}
		}
		return []model.FrameSnapshot{e.publishFrame(e.clock.Frame(), model.TriggerSeek, nil)}
	case cmdSetRate:
		if err := e.clock.SetRate(c.rate); err != nil {
			e.logger.Warn("rejected queued command", "command", c.kind, "error", err)
		}
	case cmdSetLoop:
		if err := e.clock.SetLoopMode(c.loop); err != nil {
			e.logger.Warn("rejected queued command", "command", c.kind, "error", err)
		}
	case cmdSetTotal:
		if err := e.clock.SetTotalFrames(c.frame); err != nil {
			e.logger.Warn("rejected queued command", "command", c.kind, "error", err)
		}
	}
	return nil
}

// stop rewinds, clears the session state and re-enters frame 1.
func (e *Engine) stop(ctx context.Context) model.FrameSnapshot {
	e.clock.Stop()
	e.globals.Clear()
	e.rotateSession()
	return e.enter(ctx, 1, model.TriggerStop, model.StateStopped)
}

// rotateSession ends the current session and starts a new one.
func (e *Engine) rotateSession() {
	now := time.Now().UTC()
	e.recorder.EndSession(e.session, now)
	e.session = model.NewIDAt(now)
	e.recorder.StartSession(e.session, now)
}

// enter evaluates clips at frame, runs the frame's script and publishes the
// resulting snapshot.
func (e *Engine) enter(ctx context.Context, frame int, trigger string, state model.PlaybackState) model.FrameSnapshot {
	framesEntered.Inc()

	values, colors := e.clips.Evaluate(frame)
	var lines []model.ConsoleLine
	if src, ok := e.scripts[frame]; ok {
		out := e.runner.Run(ctx, sandbox.Request{
			Source:      src,
			Frame:       frame,
			TotalFrames: e.clock.TotalFrames(),
			FPS:         e.clock.Rate().Float(),
			Globals:     e.globals,
			Props:       values,
			Timeline:    scriptTimeline{e: e},
		})
		lines = e.collect(frame, out)
	}
	return e.publish(frame, trigger, state, values, colors, lines)
}

// publishFrame publishes a snapshot for frame without running its script.
func (e *Engine) publishFrame(frame int, trigger string, lines []model.ConsoleLine) model.FrameSnapshot {
	values, colors := e.clips.Evaluate(frame)
	return e.publish(frame, trigger, e.clock.State(), values, colors, lines)
}

func (e *Engine) publish(frame int, trigger string, state model.PlaybackState, values map[string]float64, colors map[string]string, lines []model.ConsoleLine) model.FrameSnapshot {
	e.seq++
	snap := model.FrameSnapshot{
		Session:  e.session,
		Seq:      e.seq,
		Frame:    frame,
		Timecode: clock.Timecode(frame, e.clock.Rate()),
		State:    state,
		FPS:      e.clock.Rate().Float(),
		Trigger:  trigger,
		Values:   values,
		Colors:   colors,
		Console:  lines,
	}
	e.last = snap
	e.hasLast = true
	snapshotsPublished.Inc()
	e.snapshots.Publish(snap)
	return snap
}

// collect turns a script outcome into console lines, logging failures. Lines
// are stamped with the session and forwarded to the recorder and the console
// stream.
func (e *Engine) collect(frame int, out sandbox.Outcome) []model.ConsoleLine {
	scriptOutcomes.WithLabelValues(string(out.Kind)).Inc()
	scriptDuration.Observe(out.Duration.Seconds())

	lines := out.Lines
	now := time.Now().UTC()
	switch out.Kind {
	case sandbox.RuntimeError:
		e.logger.Warn("frame script failed", "category", "script_error", "frame", frame, "session_id", e.session, "error", out.Message)
		lines = append(lines, model.ConsoleLine{Frame: frame, Kind: model.ConsoleError, Text: out.Message, Time: now})
	case sandbox.TimedOut:
		e.logger.Warn("frame script aborted", "category", "script_timeout", "frame", frame, "session_id", e.session, "reason", out.Message, "duration", out.Duration)
		lines = append(lines, model.ConsoleLine{Frame: frame, Kind: model.ConsoleTimeout, Text: out.Message, Time: now})
	}

	for i := range lines {
		lines[i].Session = e.session
		e.recorder.Record(lines[i])
		e.console.Publish(lines[i])
	}
	return lines
}

// CurrentState returns the transport state.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Frame:       e.clock.Frame(),
		Playback:    e.clock.State(),
		FPS:         e.clock.Rate().Float(),
		Rate:        e.clock.Rate(),
		Loop:        e.clock.Loop(),
		TotalFrames: e.clock.TotalFrames(),
		Timecode:    clock.Timecode(e.clock.Frame(), e.clock.Rate()),
		Session:     e.session,
	}
}

// LastSnapshot returns the most recently published snapshot.
func (e *Engine) LastSnapshot() (model.FrameSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.hasLast
}

// Globals returns a deep copy of the session's global store. It waits for
// any running tick, since scripts mutate stored objects in place.
func (e *Engine) Globals() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.globals.Snapshot()
}

// BindScript binds source to frame, replacing any existing binding.
func (e *Engine) BindScript(frame int, source string) error {
	if frame < 1 {
		return &CommandError{Command: "bind_script", Err: fmt.Errorf("%d: %w", frame, ErrInvalidFrame)}
	}
	if c, ok := e.runner.(checker); ok {
		if err := c.Check(source); err != nil {
			return &CommandError{Command: "bind_script", Err: fmt.Errorf("%w: %v", ErrInvalidScript, err)}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[frame] = source
	return nil
}

// UnbindScript removes the script bound to frame.
func (e *Engine) UnbindScript(frame int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.scripts[frame]; !ok {
		return &CommandError{Command: "unbind_script", Err: fmt.Errorf("%d: %w", frame, ErrScriptNotFound)}
	}
	delete(e.scripts, frame)
	return nil
}

// Scripts returns the script bindings sorted by frame.
func (e *Engine) Scripts() []ScriptBinding {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ScriptBinding, 0, len(e.scripts))
	for _, f := range slices.Sorted(maps.Keys(e.scripts)) {
		out = append(out, ScriptBinding{Frame: f, Source: e.scripts[f]})
	}
	return out
}

type nopRecorder struct{}

func (nopRecorder) StartSession(string, time.Time) {}
func (nopRecorder) EndSession(string, time.Time)   {}
func (nopRecorder) Record(model.ConsoleLine)       {}
