package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/cadence/internal/model"
)

func TestSessionConsoleHistory(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := srv.store.CreateSession(ctx, "s1", now); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	lines := []model.ConsoleLine{
		{Session: "s1", Frame: 1, Kind: model.ConsoleLog, Text: "hello", Time: now},
		{Session: "s1", Frame: 2, Kind: model.ConsoleError, Text: "ReferenceError: x is not defined", Time: now},
	}
	for i, l := range lines {
		if err := srv.store.InsertConsoleLine(ctx, i+1, l); err != nil {
			t.Fatalf("InsertConsoleLine: %v", err)
		}
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := do(t, ts, http.MethodGet, "/v1/sessions/s1/console", "")
	expectStatus(t, resp, http.StatusOK)
	got := decode[sessionConsoleResponse](t, resp)
	if got.SessionID != "s1" || len(got.Lines) != 2 {
		t.Fatalf("console = %+v, want 2 lines for s1", got)
	}
	if got.Lines[0].Text != "hello" || got.Lines[1].Kind != model.ConsoleError {
		t.Errorf("lines = %+v", got.Lines)
	}

	sess := decode[model.Session](t, do(t, ts, http.MethodGet, "/v1/sessions/s1", ""))
	if sess.Lines != 2 || sess.Errors != 1 {
		t.Errorf("session = %+v, want 2 lines and 1 error", sess)
	}
}

func TestSessionNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	expectStatus(t, do(t, ts, http.MethodGet, "/v1/sessions/missing", ""), http.StatusNotFound)
	expectStatus(t, do(t, ts, http.MethodGet, "/v1/sessions/missing/console", ""), http.StatusNotFound)
}

func TestListSessionsPagination(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		if err := srv.store.CreateSession(ctx, id, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	got := decode[listSessionsResponse](t, do(t, ts, http.MethodGet, "/v1/sessions?limit=2&offset=1", ""))
	if got.Total != 3 || got.Limit != 2 || got.Offset != 1 || len(got.Sessions) != 2 {
		t.Errorf("list = total %d limit %d offset %d len %d", got.Total, got.Limit, got.Offset, len(got.Sessions))
	}

	got = decode[listSessionsResponse](t, do(t, ts, http.MethodGet, "/v1/sessions?limit=1000&offset=-4", ""))
	if got.Limit != maxListLimit || got.Offset != 0 || len(got.Sessions) != 3 {
		t.Errorf("clamped list = limit %d offset %d len %d", got.Limit, got.Offset, len(got.Sessions))
	}
}
