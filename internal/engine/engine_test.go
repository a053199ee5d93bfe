package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/cadence/internal/clip"
	"github.com/seantiz/cadence/internal/clock"
	"github.com/seantiz/cadence/internal/easing"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/sandbox"
)

// frameTime is one frame at the PAL rate used by these tests.
const frameTime = 40 * time.Millisecond

// fakeRecorder captures everything the engine records.
type fakeRecorder struct {
	mu     sync.Mutex
	starts []string
	ends   []string
	lines  []model.ConsoleLine
}

func (r *fakeRecorder) StartSession(id string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, id)
}

func (r *fakeRecorder) EndSession(id string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, id)
}

func (r *fakeRecorder) Record(line model.ConsoleLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func newTestEngine(t *testing.T, total int, loop model.LoopMode, budget sandbox.Budget) (*engine.Engine, *fakeRecorder) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rec := &fakeRecorder{}
	eng, err := engine.NewEngine(engine.Config{TotalFrames: total, Rate: clock.PAL, Loop: loop},
		sandbox.NewJSRunner(budget, logger), rec, logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(eng.Close)
	return eng, rec
}

// generous keeps script budgets out of the way on slow machines.
func generous() sandbox.Budget {
	return sandbox.Budget{Timeout: 2 * time.Second}
}

func bind(t *testing.T, eng *engine.Engine, frame int, src string) {
	t.Helper()
	if err := eng.BindScript(frame, src); err != nil {
		t.Fatalf("BindScript(%d): %v", frame, err)
	}
}

func countLines(snaps []model.FrameSnapshot, text string) int {
	n := 0
	for _, s := range snaps {
		for _, l := range s.Console {
			if l.Text == text {
				n++
			}
		}
	}
	return n
}

func globalNumber(t *testing.T, eng *engine.Engine, name string) float64 {
	t.Helper()
	switch v := eng.Globals()[name].(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		t.Fatalf("global %q = %v (%T), want a number", name, v, v)
		return 0
	}
}

func TestCommandsApplyOnNextAdvance(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	ctx := context.Background()

	eng.Play()
	if st := eng.CurrentState(); st.Playback != model.StateStopped {
		t.Fatalf("state before Advance = %q, want stopped", st.Playback)
	}

	snaps := eng.Advance(ctx, 0)
	if len(snaps) != 1 || snaps[0].Frame != 1 || snaps[0].Trigger != model.TriggerEnter {
		t.Fatalf("Advance(0) snapshots = %+v, want entry of frame 1", snaps)
	}
	if st := eng.CurrentState(); st.Playback != model.StatePlaying || st.Frame != 1 {
		t.Errorf("state = %+v", st)
	}
}

func TestScriptRunsExactlyOncePerEntry(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	ctx := context.Background()
	bind(t, eng, 30, `console.log("hit")`)

	eng.Play()
	all := eng.Advance(ctx, 0)
	for i := 0; i < 300; i++ {
		all = append(all, eng.Advance(ctx, frameTime/4)...)
	}

	if n := countLines(all, "hit"); n != 1 {
		t.Errorf("script ran %d times, want 1", n)
	}
	if len(all) != 60 {
		t.Fatalf("published %d snapshots, want 60", len(all))
	}
	for i, s := range all {
		if s.Frame != i+1 {
			t.Fatalf("snapshot %d is frame %d, want %d", i, s.Frame, i+1)
		}
	}
	if last := all[len(all)-1]; last.State != model.StateStopped {
		t.Errorf("last snapshot state = %q, want stopped", last.State)
	}
	if st := eng.CurrentState(); st.Frame != 60 || st.Playback != model.StateStopped {
		t.Errorf("final state = %+v, want stopped on frame 60", st)
	}
}

func TestLoopRetriggersFrameOne(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopLoop, generous())
	ctx := context.Background()
	bind(t, eng, 1, `console.log("one")`)

	eng.Play()
	all := eng.Advance(ctx, 0)
	all = append(all, eng.Advance(ctx, 119*frameTime)...)

	if n := countLines(all, "one"); n != 2 {
		t.Errorf("frame 1 script ran %d times over two loops, want 2", n)
	}
}

func TestStopClearsGlobalsAcrossSessions(t *testing.T) {
	eng, rec := newTestEngine(t, 60, model.LoopOnce, generous())
	ctx := context.Background()
	bind(t, eng, 1, "global.count = (global.count ?? 0) + 1")

	var sessions []string
	for i := 0; i < 2; i++ {
		eng.Stop()
		snaps := eng.Advance(ctx, 0)
		if len(snaps) != 1 || snaps[0].Trigger != model.TriggerStop || snaps[0].Frame != 1 {
			t.Fatalf("stop snapshots = %+v", snaps)
		}
		if got := globalNumber(t, eng, "count"); got != 1 {
			t.Errorf("session %d: count after stop = %v, want 1", i, got)
		}

		eng.Play()
		eng.Advance(ctx, 0)
		eng.Advance(ctx, 10*frameTime)
		if got := globalNumber(t, eng, "count"); got != 1 {
			t.Errorf("session %d: count after play = %v, want 1", i, got)
		}
		sessions = append(sessions, eng.CurrentState().Session)
	}

	if sessions[0] == sessions[1] {
		t.Error("stop did not start a new session")
	}
	if len(rec.ends) < 2 {
		t.Errorf("recorded %d session ends, want at least 2", len(rec.ends))
	}
}

func TestFirstPlayEntersFrameOneScript(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	bind(t, eng, 1, "global.count = (global.count ?? 0) + 1")

	eng.Play()
	eng.Advance(context.Background(), 0)
	if got := globalNumber(t, eng, "count"); got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

func TestTimeoutIsContained(t *testing.T) {
	eng, rec := newTestEngine(t, 60, model.LoopOnce, sandbox.Budget{Timeout: 20 * time.Millisecond})
	ctx := context.Background()
	bind(t, eng, 2, `console.log("spinning"); while (true) {}`)

	eng.Play()
	eng.Advance(ctx, 0)
	snaps := eng.Advance(ctx, 3*frameTime)

	if len(snaps) != 3 || snaps[2].Frame != 4 {
		t.Fatalf("snapshots = %+v, want frames 2..4", snaps)
	}
	console := snaps[0].Console
	if len(console) != 2 || console[0].Text != "spinning" || console[1].Kind != model.ConsoleTimeout {
		t.Errorf("frame 2 console = %+v, want log line then timeout", console)
	}
	if eng.CurrentState().Playback != model.StatePlaying {
		t.Error("playback stopped after a script timeout")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.lines) != 2 || rec.lines[1].Session == "" {
		t.Errorf("recorded lines = %+v", rec.lines)
	}
}

func TestRuntimeErrorIsContained(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	ctx := context.Background()
	bind(t, eng, 2, `missing.value = 1`)

	eng.Play()
	eng.Advance(ctx, 0)
	snaps := eng.Advance(ctx, 2*frameTime)
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	if c := snaps[0].Console; len(c) != 1 || c[0].Kind != model.ConsoleError {
		t.Errorf("frame 2 console = %+v, want one error line", c)
	}
}

func TestSeekClampsToTimeline(t *testing.T) {
	eng, _ := newTestEngine(t, 300, model.LoopOnce, generous())
	ctx := context.Background()

	eng.Seek(-5)
	snaps := eng.Advance(ctx, 0)
	if len(snaps) != 1 || snaps[0].Frame != 1 || snaps[0].Trigger != model.TriggerSeek {
		t.Errorf("Seek(-5) snapshots = %+v", snaps)
	}

	eng.Seek(10_000)
	eng.Advance(ctx, 0)
	if f := eng.CurrentState().Frame; f != 300 {
		t.Errorf("Seek(10000) frame = %d, want 300", f)
	}
}

func TestPausedSeekRunsScriptOnResume(t *testing.T) {
	eng, _ := newTestEngine(t, 100, model.LoopOnce, generous())
	ctx := context.Background()
	bind(t, eng, 40, `console.log("forty")`)

	eng.Play()
	eng.Pause()
	eng.Seek(40)
	snaps := eng.Advance(ctx, 0)
	if n := countLines(snaps, "forty"); n != 0 {
		t.Errorf("paused seek ran the script %d times", n)
	}

	eng.Play()
	snaps = eng.Advance(ctx, 0)
	if n := countLines(snaps, "forty"); n != 1 {
		t.Errorf("resume ran the script %d times, want 1", n)
	}
}

func newHeroClip(t *testing.T, eng *engine.Engine) {
	t.Helper()
	if err := eng.AddClip("hero", 30, model.LoopOnce); err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	for _, k := range []clip.Keyframe{
		{Frame: 1, Value: 0, Easing: easing.LinearSpec},
		{Frame: 30, Value: 100, Easing: easing.LinearSpec},
	} {
		if err := eng.UpsertKeyframe("hero", "x", k); err != nil {
			t.Fatalf("UpsertKeyframe: %v", err)
		}
	}
}

func TestScriptWritesOverrideInterpolation(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	ctx := context.Background()
	newHeroClip(t, eng)
	bind(t, eng, 2, `props["hero.x"] = -1; props["hero.extra"] = props["hero.x"] * 2`)

	eng.Play()
	first := eng.Advance(ctx, 0)
	if got := first[0].Values["hero.x"]; got != 0 {
		t.Errorf("frame 1 hero.x = %v, want 0", got)
	}

	snaps := eng.Advance(ctx, frameTime)
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if v := snaps[0].Values; v["hero.x"] != -1 || v["hero.extra"] != -2 {
		t.Errorf("frame 2 values = %v, want script writes", v)
	}
}

func TestEditDoesNotAlterPublishedSnapshot(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	ctx := context.Background()
	newHeroClip(t, eng)

	eng.Play()
	eng.Advance(ctx, 0)
	snaps := eng.Advance(ctx, 14*frameTime)
	published := snaps[len(snaps)-1]
	if published.Frame != 15 {
		t.Fatalf("last frame = %d, want 15", published.Frame)
	}
	before := published.Values["hero.x"]

	if err := eng.UpsertKeyframe("hero", "x", clip.Keyframe{Frame: 30, Value: 1000, Easing: easing.LinearSpec}); err != nil {
		t.Fatalf("UpsertKeyframe: %v", err)
	}
	if published.Values["hero.x"] != before {
		t.Error("edit altered an already published snapshot")
	}
	if last, _ := eng.LastSnapshot(); last.Values["hero.x"] != before {
		t.Error("edit altered the retained last snapshot")
	}

	eng.Seek(15)
	after := eng.Advance(ctx, 0)
	if len(after) != 1 || after[0].Values["hero.x"] <= before {
		t.Errorf("re-entered frame 15 values = %+v, want the edit applied", after)
	}
}

func TestScriptTimelineCommandsApplyNextTick(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	ctx := context.Background()
	bind(t, eng, 3, `timeline.gotoAndStop(10)`)

	eng.Play()
	eng.Advance(ctx, 0)
	snaps := eng.Advance(ctx, 3*frameTime)
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots within the tick, want 3", len(snaps))
	}

	snaps = eng.Advance(ctx, 0)
	st := eng.CurrentState()
	if st.Playback != model.StatePaused || st.Frame != 10 {
		t.Errorf("state = %+v, want paused on frame 10", st)
	}
	if len(snaps) != 1 || snaps[0].Trigger != model.TriggerSeek {
		t.Errorf("snapshots = %+v, want one seek snapshot", snaps)
	}
}

func TestOnceEndStartsNewSession(t *testing.T) {
	eng, _ := newTestEngine(t, 5, model.LoopOnce, generous())
	ctx := context.Background()
	bind(t, eng, 1, "global.count = (global.count ?? 0) + 1")

	eng.Play()
	eng.Advance(ctx, 0)
	before := eng.CurrentState().Session
	eng.Advance(ctx, 10*frameTime)

	st := eng.CurrentState()
	if st.Playback != model.StateStopped || st.Frame != 5 {
		t.Fatalf("state = %+v, want stopped on frame 5", st)
	}
	if st.Session == before {
		t.Error("end of timeline kept the session")
	}
	if len(eng.Globals()) != 0 {
		t.Errorf("globals = %v, want cleared", eng.Globals())
	}

	eng.Play()
	snaps := eng.Advance(ctx, 0)
	if len(snaps) != 1 || snaps[0].Frame != 1 {
		t.Fatalf("replay snapshots = %+v, want frame 1", snaps)
	}
	if got := globalNumber(t, eng, "count"); got != 1 {
		t.Errorf("count on replay = %v, want 1", got)
	}
}

func TestOnceSingleFrameReplaysEachSession(t *testing.T) {
	eng, _ := newTestEngine(t, 1, model.LoopOnce, generous())
	ctx := context.Background()
	bind(t, eng, 1, `console.log("hit")`)

	var all []model.FrameSnapshot
	sessions := make(map[string]bool)
	for range 3 {
		eng.Play()
		all = append(all, eng.Advance(ctx, 0)...)
		sessions[eng.CurrentState().Session] = true
		all = append(all, eng.Advance(ctx, 2*frameTime)...)
		if st := eng.CurrentState(); st.Playback != model.StateStopped {
			t.Fatalf("state = %+v, want stopped", st)
		}
	}

	if n := countLines(all, "hit"); n != 3 {
		t.Errorf("frame 1 script ran %d times over 3 plays, want 3", n)
	}
	if len(sessions) != 3 {
		t.Errorf("plays ran in %d sessions, want 3", len(sessions))
	}
}

func TestPingPongBoundaryScriptRunsOnEachArrival(t *testing.T) {
	eng, _ := newTestEngine(t, 3, model.LoopPingPong, generous())
	ctx := context.Background()
	bind(t, eng, 3, `console.log("edge")`)
	bind(t, eng, 1, `console.log("start")`)

	eng.Play()
	all := eng.Advance(ctx, 0)
	all = append(all, eng.Advance(ctx, 10*frameTime)...)

	var got []int
	for _, s := range all {
		got = append(got, s.Frame)
	}
	want := []int{1, 2, 3, 2, 1, 2, 3, 2, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("entered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entered %v, want %v", got, want)
		}
	}
	if n := countLines(all, "edge"); n != 3 {
		t.Errorf("frame 3 script ran %d times, want 3", n)
	}
	if n := countLines(all, "start"); n != 3 {
		t.Errorf("frame 1 script ran %d times, want 3", n)
	}
	if st := eng.CurrentState(); st.Playback != model.StatePlaying {
		t.Errorf("state = %+v, want still playing", st)
	}
}

// TestGlobalsReadDuringPlayback reads nested globals while scripts mutate
// them. Run with -race.
func TestGlobalsReadDuringPlayback(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopLoop, generous())
	ctx := context.Background()
	for f := 1; f <= 60; f++ {
		bind(t, eng, f, `global.o = global.o || {}; global.o["k" + (frame % 7)] = frame; global.o.n = (global.o.n || 0) + 1`)
	}

	eng.Play()
	eng.Advance(ctx, 0)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := json.Marshal(eng.Globals()); err != nil {
				t.Errorf("marshal globals: %v", err)
				return
			}
		}
	})

	for range 200 {
		eng.Advance(ctx, frameTime)
	}
	close(done)
	wg.Wait()

	o, ok := eng.Globals()["o"].(map[string]any)
	if !ok {
		t.Fatalf("globals o = %T, want map", eng.Globals()["o"])
	}
	if n, _ := o["n"].(int64); n != 201 {
		t.Errorf("o.n = %v, want 201", o["n"])
	}
}

func TestInvalidCommandsRejected(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"negative fps", eng.SetFPS(clock.Rate{Num: -1, Den: 1}), clock.ErrInvalidRate},
		{"zero frames", eng.SetTotalFrames(0), clock.ErrInvalidFrameCount},
		{"bad loop", eng.SetLoopMode("sideways"), clock.ErrInvalidLoopMode},
		{"bind frame 0", eng.BindScript(0, "1"), engine.ErrInvalidFrame},
		{"bind syntax error", eng.BindScript(1, "if ("), engine.ErrInvalidScript},
		{"unbind missing", eng.UnbindScript(5), engine.ErrScriptNotFound},
		{"missing clip", eng.UpsertKeyframe("ghost", "x", clip.Keyframe{Frame: 1}), clip.ErrClipNotFound},
		{"bad keyframe", func() error {
			_ = eng.AddClip("c", 10, model.LoopOnce)
			return eng.UpsertKeyframe("c", "x", clip.Keyframe{Frame: 0})
		}(), clip.ErrInvalidFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
			var ce *engine.CommandError
			if !errors.As(tt.err, &ce) {
				t.Errorf("error %v is not a CommandError", tt.err)
			}
		})
	}

	eng.Advance(context.Background(), 0)
	if st := eng.CurrentState(); st.TotalFrames != 60 || st.FPS != 25 {
		t.Errorf("rejected commands changed state: %+v", st)
	}
}

func TestSetFPSAppliesOnNextTick(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	if err := eng.SetFPS(clock.NTSC); err != nil {
		t.Fatalf("SetFPS: %v", err)
	}
	if eng.CurrentState().Rate != clock.PAL {
		t.Error("rate changed before Advance")
	}
	eng.Advance(context.Background(), 0)
	if eng.CurrentState().Rate != clock.NTSC {
		t.Errorf("rate = %v, want NTSC", eng.CurrentState().Rate)
	}
}

func TestSnapshotPushStream(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	ch, unsub := eng.Snapshots().Subscribe()
	defer unsub()

	eng.Play()
	pulled := eng.Advance(context.Background(), 0)
	pulled = append(pulled, eng.Advance(context.Background(), 2*frameTime)...)

	for i := range pulled {
		select {
		case s := <-ch:
			if s.Seq != pulled[i].Seq {
				t.Errorf("pushed seq %d, pulled seq %d", s.Seq, pulled[i].Seq)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for pushed snapshot")
		}
	}
}

func TestScriptBindingsSorted(t *testing.T) {
	eng, _ := newTestEngine(t, 60, model.LoopOnce, generous())
	bind(t, eng, 20, "1")
	bind(t, eng, 5, "2")
	bind(t, eng, 5, "3")

	got := eng.Scripts()
	if len(got) != 2 || got[0].Frame != 5 || got[0].Source != "3" || got[1].Frame != 20 {
		t.Errorf("Scripts = %+v", got)
	}
	if err := eng.UnbindScript(20); err != nil {
		t.Fatalf("UnbindScript: %v", err)
	}
	if len(eng.Scripts()) != 1 {
		t.Errorf("Scripts after unbind = %+v", eng.Scripts())
	}
}
