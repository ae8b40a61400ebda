package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/scenario"
	"github.com/san-kum/quadsim/internal/sim"
)

func newTestServer(t *testing.T) (*Server, *sim.Driver) {
	t.Helper()
	s, err := sim.New(scenario.Column(), sim.Config{
		DomainSize: 100,
		Params:     quadtree.DefaultParams(),
		Workers:    1,
	})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	d := sim.NewDriver(s)
	return New(d, Options{StreamEvery: 1}), d
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv.Handler(), "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" || got["bodies"] != float64(3) {
		t.Errorf("health = %v", got)
	}
}

func TestSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)

	var snap sim.Snapshot
	rec := do(t, srv.Handler(), "GET", "/snapshot", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Bodies) != 3 || len(snap.Nodes) != 0 {
		t.Errorf("snapshot: %d bodies, %d nodes", len(snap.Bodies), len(snap.Nodes))
	}
	if snap.Root.Size != 100 {
		t.Errorf("root = %+v", snap.Root)
	}

	rec = do(t, srv.Handler(), "GET", "/snapshot?tree=1", "")
	snap = sim.Snapshot{}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Nodes) != snap.Stats.Nodes || len(snap.Nodes) == 0 {
		t.Errorf("tree snapshot: %d nodes, stats %d", len(snap.Nodes), snap.Stats.Nodes)
	}
}

func TestAddBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"mass":2,"x":50,"y":50,"vx":0.1}`, http.StatusCreated},
		{"zero mass", `{"mass":0,"x":50,"y":50}`, http.StatusBadRequest},
		{"negative position", `{"mass":1,"x":-1,"y":50}`, http.StatusBadRequest},
		{"malformed", `{"mass":`, http.StatusBadRequest},
		{"unknown field", `{"mass":1,"x":1,"y":1,"z":3}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, d := newTestServer(t)
			rec := do(t, srv.Handler(), "POST", "/bodies", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			want := 3
			if tt.status == http.StatusCreated {
				want = 4
			}
			if n := len(d.Snapshot(false).Bodies); n != want {
				t.Errorf("bodies = %d, want %d", n, want)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv.Handler(), "GET", "/bodies", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestPauseResumeReset(t *testing.T) {
	srv, d := newTestServer(t)
	h := srv.Handler()

	do(t, h, "POST", "/pause", "")
	if !d.Paused() {
		t.Fatal("expected paused")
	}
	do(t, h, "POST", "/resume", "")
	if d.Paused() {
		t.Fatal("expected running")
	}

	if err := d.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	rec := do(t, h, "POST", "/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if step := d.Snapshot(false).Step; step != 0 {
		t.Errorf("step after reset = %d", step)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv.Handler(), "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quadsim_steps_total") {
		t.Error("metrics output missing quadsim_steps_total")
	}
}

type streamFrame struct {
	Type    string       `json:"type"`
	Payload sim.Snapshot `json:"payload"`
}

func readFrame(t *testing.T, ws *websocket.Conn) streamFrame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f streamFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func TestStream(t *testing.T) {
	srv, d := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	first := readFrame(t, ws)
	if first.Type != "snapshot" || first.Payload.Step != 0 || len(first.Payload.Bodies) != 3 {
		t.Fatalf("first frame = %s step %d", first.Type, first.Payload.Step)
	}

	if err := d.Step(ctx); err != nil {
		t.Fatalf("step: %v", err)
	}
	next := readFrame(t, ws)
	if next.Payload.Step != 1 {
		t.Errorf("streamed step = %d", next.Payload.Step)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	srv, d := newTestServer(t)
	srv.opts.Addr = "127.0.0.1:0"
	srv.opts.TPS = 200

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.Snapshot(false).Step == 0 {
		t.Error("driver never stepped")
	}
}
