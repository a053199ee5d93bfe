// Package recorder persists session boundaries and console lines off the
// playback path. The engine hands events to a bounded queue that a single
// worker drains into the store, so a slow disk never stalls a tick.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/store"
)

// DefaultQueueSize is the number of events buffered before new ones are
// dropped.
const DefaultQueueSize = 1024

const writeTimeout = 5 * time.Second

type eventKind int

const (
	eventStart eventKind = iota
	eventEnd
	eventLine
)

type event struct {
	kind    eventKind
	session string
	at      time.Time
	line    model.ConsoleLine
}

// Recorder queues engine events for persistence. It is safe for concurrent
// use.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
	events chan event
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// Worker-owned state.
	seq   map[string]int
	known map[string]bool
}

// New creates a recorder writing to s and starts its worker. queueSize below
// 1 uses DefaultQueueSize.
func New(s store.Store, queueSize int, logger *slog.Logger) *Recorder {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		store:  s,
		logger: logger,
		events: make(chan event, queueSize),
		seq:    make(map[string]int),
		known:  make(map[string]bool),
	}
	r.wg.Go(func() {
		for ev := range r.events {
			r.process(ev)
		}
	})
	return r
}

// StartSession queues the start of a session.
func (r *Recorder) StartSession(id string, at time.Time) {
	r.submit(event{kind: eventStart, session: id, at: at})
}

// EndSession queues the end of a session.
func (r *Recorder) EndSession(id string, at time.Time) {
	r.submit(event{kind: eventEnd, session: id, at: at})
}

// Record queues a console line.
func (r *Recorder) Record(line model.ConsoleLine) {
	r.submit(event{kind: eventLine, session: line.Session, at: line.Time, line: line})
}

// Close stops accepting events and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
}

// submit queues ev without blocking.
func (r *Recorder) submit(ev event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("recorder queue full, dropping event", "session_id", ev.session, "kind", ev.kind)
	}
}

func (r *Recorder) process(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch ev.kind {
	case eventStart:
		r.ensureSession(ctx, ev.session, ev.at)
	case eventEnd:
		r.ensureSession(ctx, ev.session, ev.at)
		if err := r.store.EndSession(ctx, ev.session, ev.at); err != nil {
			r.logger.Error("failed to end session", "session_id", ev.session, "error", err)
		}
		delete(r.seq, ev.session)
		delete(r.known, ev.session)
	case eventLine:
		at := ev.at
		if at.IsZero() {
			at = time.Now().UTC()
		}
		r.ensureSession(ctx, ev.session, at)
		seq := r.seq[ev.session]
		r.seq[ev.session] = seq + 1
		if err := r.store.InsertConsoleLine(ctx, seq, ev.line); err != nil {
			r.logger.Error("failed to persist console line", "session_id", ev.session, "seq", seq, "error", err)
		}
	}
}

// ensureSession creates the session row the first time id is seen.
func (r *Recorder) ensureSession(ctx context.Context, id string, at time.Time) {
	if r.known[id] {
		return
	}
	if err := r.store.CreateSession(ctx, id, at); err != nil {
		r.logger.Error("failed to create session", "session_id", id, "error", err)
		return
	}
	r.known[id] = true
}
