package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/sidecar/pkg/types"
	wsHub "github.com/obsidianstack/sidecar/sidecar/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

type fakeSource struct {
	mu   sync.Mutex
	snap types.StatsSnapshot
}

func (f *fakeSource) Stats() types.StatsSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) set(s types.StatsSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

func newSource(status types.HealthStatus, eventsIn int64) *fakeSource {
	var s types.StatsSnapshot
	s.Health = types.HealthResult{Status: status, Reasons: []string{}}
	s.Pipeline.EventsIn = eventsIn
	s.OutputType = "splunk-hec"
	return &fakeSource{snap: s}
}

// startHub starts a test HTTP server with the hub as its handler and runs
// the broadcast loop with a cancellable context.
func startHub(t *testing.T, src wsHub.StatsSource) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(src, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, raw)
	}
	return m
}

// waitCount polls hub.Count until it equals want or a deadline passes.
func waitCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Count: got %d, want %d", hub.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateStats(t *testing.T) {
	wsURL, _, _ := startHub(t, newSource(types.StatusHealthy, 1234))

	m := readMessage(t, dial(t, wsURL))
	if m.Event != "stats" {
		t.Errorf("event: got %q, want stats", m.Event)
	}
	if m.Data.Pipeline.EventsIn != 1234 || m.Data.OutputType != "splunk-hec" {
		t.Errorf("data: got %+v", m.Data)
	}
	if m.Data.Health.Status != types.StatusHealthy {
		t.Errorf("health: got %q", m.Data.Health.Status)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	src := newSource(types.StatusHealthy, 1)
	wsURL, _, _ := startHub(t, src)

	conn := dial(t, wsURL)
	readMessage(t, conn)

	src.set(newSource(types.StatusUnhealthy, 2).Stats())

	deadline := time.Now().Add(2 * time.Second)
	for {
		m := readMessage(t, conn)
		if m.Data.Health.Status == types.StatusUnhealthy && m.Data.Pipeline.EventsIn == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("tick broadcast never carried the updated snapshot")
		}
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newSource(types.StatusHealthy, 0))

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		if m := readMessage(t, conns[i]); m.Event != "stats" {
			t.Errorf("client %d: event %q", i, m.Event)
		}
	}
	waitCount(t, hub, 3)

	conns[0].Close()
	waitCount(t, hub, 2)
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newSource(types.StatusHealthy, 0))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	cancel()
	waitCount(t, hub, 0)
}

func TestHub_ConnectAfterShutdown_Rejected(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newSource(types.StatusHealthy, 0))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)
	cancel()
	waitCount(t, hub, 0)

	late, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		late.Close()
		t.Fatal("dial after shutdown succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v, want 503", resp)
	}
	if n := hub.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newSource(types.StatusHealthy, 0), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
