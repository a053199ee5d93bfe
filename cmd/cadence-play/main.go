// cadence-play plays a timeline manifest headlessly with simulated ticks and
// prints every published snapshot as a JSON line.
// Usage: go run ./cmd/cadence-play -manifest timeline.yaml -frames 120
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/seantiz/cadence/internal/clock"
	"github.com/seantiz/cadence/internal/config"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/manifest"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/sandbox"
)

func main() {
	var (
		path      = flag.String("manifest", "", "timeline manifest (YAML)")
		frames    = flag.Int("frames", 0, "number of snapshots to print; 0 plays the timeline once through")
		fps       = flag.String("fps", "", "override the manifest frame rate")
		loop      = flag.String("loop", "", "override the manifest loop mode")
		timeoutMS = flag.Int("script-timeout-ms", 5, "per-frame script time budget")
		logLevel  = flag.String("log-level", "warn", "log level for stderr")
	)
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := config.NewLogger(os.Stderr, parseLevel(*logLevel))
	if err := run(*path, *frames, *fps, *loop, time.Duration(*timeoutMS)*time.Millisecond, os.Stdout, logger); err != nil {
		log.Fatalf("cadence-play: %v", err)
	}
}

func run(path string, frames int, fps, loop string, timeout time.Duration, out io.Writer, logger *slog.Logger) error {
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	cfg, err := m.Config()
	if err != nil {
		return err
	}
	if fps != "" {
		if cfg.Rate, err = clock.ParseRate(fps); err != nil {
			return err
		}
	}
	if loop != "" {
		if cfg.Loop, err = model.ParseLoopMode(loop); err != nil {
			return err
		}
	}

	runner := sandbox.NewJSRunner(sandbox.Budget{Timeout: timeout}, logger)
	eng, err := engine.NewEngine(cfg, runner, nil, logger)
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := m.Apply(eng); err != nil {
		return err
	}

	state := eng.CurrentState()
	if frames <= 0 {
		frames = state.TotalFrames
	}
	step := frameStep(state.Rate)

	enc := json.NewEncoder(out)
	ctx := context.Background()
	printed := 0

	eng.Play()
	dt := time.Duration(0)
	for printed < frames {
		snaps := eng.Advance(ctx, dt)
		for _, snap := range snaps {
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			printed++
			if printed == frames {
				break
			}
		}
		// A Once timeline ends, or a script paused or stopped playback.
		if dt > 0 && eng.CurrentState().Playback != model.StatePlaying {
			break
		}
		dt = step
	}
	logger.Info("playback finished", "snapshots", printed)
	return nil
}

// frameStep returns the shortest tick that always crosses one frame at r.
func frameStep(r clock.Rate) time.Duration {
	return time.Duration((r.Den*int64(time.Second) + r.Num - 1) / r.Num)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return l
}
