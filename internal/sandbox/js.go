package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/metrics"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/seantiz/cadence/internal/model"
)

const (
	// programCacheSize bounds the compiled-program cache. The cache is reset
	// when full; frame scripts are few and recompiling is cheap.
	programCacheSize = 256

	// maxLines and maxLineLen bound what one invocation may log.
	maxLines   = 1000
	maxLineLen = 4096

	maxCallStackSize = 1024

	heapAllocsMetric = "/gc/heap/allocs:bytes"
)

var (
	errTimeBudget   = errors.New("script exceeded time budget")
	errMemoryBudget = errors.New("script exceeded memory budget")
)

// JSRunner runs frame scripts as JavaScript. Each invocation gets a fresh
// interpreter, so nothing but the GlobalStore survives between frames.
//
// The interpreter checks its interrupt flag between instructions. A watchdog
// goroutine samples wall time and process heap allocation every
// CheckInterval and raises the flag when a ceiling is crossed.
type JSRunner struct {
	budget Budget
	logger *slog.Logger

	mu       sync.Mutex
	programs map[string]*goja.Program
}

// NewJSRunner creates a runner enforcing b. Zero fields in b take defaults;
// a zero MaxAllocBytes disables the memory ceiling.
func NewJSRunner(b Budget, logger *slog.Logger) *JSRunner {
	return &JSRunner{
		budget:   b.withDefaults(),
		logger:   logger,
		programs: make(map[string]*goja.Program),
	}
}

// Budget returns the effective budget.
func (r *JSRunner) Budget() Budget {
	return r.budget
}

// Run executes req.Source. It never panics.
func (r *JSRunner) Run(ctx context.Context, req Request) (out Outcome) {
	start := time.Now()
	con := &console{frame: req.Frame}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("script host panic", "frame", req.Frame, "panic", p)
			out = Outcome{Kind: RuntimeError, Message: fmt.Sprintf("internal error: %v", p)}
		}
		out.Lines = con.lines
		out.Duration = time.Since(start)
	}()

	prog, err := r.compile(req.Source)
	if err != nil {
		return Outcome{Kind: RuntimeError, Message: err.Error()}
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)
	if err := bind(vm, req, con); err != nil {
		return Outcome{Kind: RuntimeError, Message: fmt.Sprintf("bind globals: %v", err)}
	}

	stop := r.watch(ctx, vm, start)
	_, err = vm.RunProgram(prog)
	stop()

	return classify(err)
}

// Check reports whether source compiles.
func (r *JSRunner) Check(source string) error {
	_, err := r.compile(source)
	return err
}

// compile returns the cached program for src, compiling it on first use.
func (r *JSRunner) compile(src string) (*goja.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.programs[src]; ok {
		return p, nil
	}
	p, err := goja.Compile("frame-script", src, false)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}
	if len(r.programs) >= programCacheSize {
		clear(r.programs)
	}
	r.programs[src] = p
	return p, nil
}

// watch starts the budget watchdog for one invocation. The returned function
// stops it and waits for it to exit.
func (r *JSRunner) watch(ctx context.Context, vm *goja.Runtime, start time.Time) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup

	baseline := heapAllocs()
	wg.Go(func() {
		deadline := time.NewTimer(r.budget.Timeout - time.Since(start))
		defer deadline.Stop()
		ticker := time.NewTicker(r.budget.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
				return
			case <-deadline.C:
				vm.Interrupt(errTimeBudget)
				return
			case <-ticker.C:
				if r.budget.MaxAllocBytes > 0 && heapAllocs()-baseline > r.budget.MaxAllocBytes {
					vm.Interrupt(errMemoryBudget)
					return
				}
			}
		}
	})

	return func() {
		close(done)
		wg.Wait()
	}
}

// classify maps an interpreter error to an Outcome.
func classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: Completed}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return Outcome{Kind: TimedOut, Message: fmt.Sprint(interrupted.Value())}
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		if v := exc.Value(); v != nil {
			return Outcome{Kind: RuntimeError, Message: v.String()}
		}
		return Outcome{Kind: RuntimeError, Message: exc.Error()}
	}

	return Outcome{Kind: RuntimeError, Message: err.Error()}
}

// heapAllocs returns the cumulative bytes allocated by the process.
func heapAllocs() uint64 {
	s := []metrics.Sample{{Name: heapAllocsMetric}}
	metrics.Read(s)
	if s[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s[0].Value.Uint64()
}

// console collects lines logged by one invocation.
type console struct {
	frame int
	lines []model.ConsoleLine
}

func (c *console) add(kind string, args []goja.Value) {
	if len(c.lines) >= maxLines {
		return
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	text := strings.Join(parts, " ")
	if len(text) > maxLineLen {
		text = text[:maxLineLen]
	}
	c.lines = append(c.lines, model.ConsoleLine{
		Frame: c.frame,
		Kind:  kind,
		Text:  text,
		Time:  time.Now().UTC(),
	})
}
