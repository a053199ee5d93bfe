package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seantiz/cadence/internal/model"
)

const (
	wsWriteWait = 5 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.engine.LastSnapshot()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no snapshot published yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleStreamSnapshots streams every published snapshot as an SSE
// "snapshot" event. The stream ends with a "done" event when the engine
// closes. A slow client misses snapshots rather than stalling the engine.
func (s *Server) handleStreamSnapshots(w http.ResponseWriter, r *http.Request) {
	ch, unsub := s.engine.Snapshots().Subscribe()
	defer unsub()
	defer trackStream("snapshots_sse")()
	streamSSE(s, w, r, "snapshot", ch)
}

// handleStreamConsole streams console lines as SSE "console" events.
func (s *Server) handleStreamConsole(w http.ResponseWriter, r *http.Request) {
	ch, unsub := s.engine.Console().Subscribe()
	defer unsub()
	defer trackStream("console_sse")()
	streamSSE(s, w, r, "console", ch)
}

func streamSSE[T any](s *Server, w http.ResponseWriter, r *http.Request, event string, ch <-chan T) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case v, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				s.logger.Error("encode stream event", "event", event, "error", err)
				continue
			}
			if err := writeSSEEvent(w, event, string(data)); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleSnapshotsWebsocket pushes snapshots as JSON text messages. Client
// messages are read only to notice disconnects.
func (s *Server) handleSnapshotsWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ch, unsub := s.engine.Snapshots().Subscribe()
	defer unsub()
	defer trackStream("snapshots_ws")()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				s.logger.Debug("websocket write", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap model.FrameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// writeSSEData writes an SSE data event. Multi-line strings are split so
// that each segment gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, data string) error {
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	return writeSSEData(w, data)
}
