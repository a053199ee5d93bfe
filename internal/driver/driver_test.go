package driver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/cadence/internal/driver"
	"github.com/seantiz/cadence/internal/model"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls int
	total time.Duration
}

func (f *fakeEngine) Advance(_ context.Context, dt time.Duration) []model.FrameSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.total += dt
	return nil
}

func TestDriverAdvancesByElapsedTime(t *testing.T) {
	eng := &fakeEngine{}
	d := driver.New(eng, 5*time.Millisecond, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Run(ctx)
	elapsed := time.Since(start)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want deadline exceeded", err)
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.calls == 0 {
		t.Fatal("Advance was never called")
	}
	if eng.total <= 0 || eng.total > elapsed {
		t.Errorf("total dt = %v, want within (0, %v]", eng.total, elapsed)
	}
}
