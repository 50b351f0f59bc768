package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"posewatch/internal/logger"
	"posewatch/internal/metrics"
)

func setupHub(t *testing.T) (*HubService, *metrics.Metrics, context.CancelFunc, *httptest.Server) {
	t.Helper()

	log, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(log.Close)

	m := metrics.New()
	hub := NewHubService(log, m)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)

	return hub, m, cancel, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *HubService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.GetClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesViewers(t *testing.T) {
	hub, m, _, srv := setupHub(t)

	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	if got := m.ActiveViewers.Load(); got != 2 {
		t.Fatalf("ActiveViewers = %d, want 2", got)
	}

	if err := hub.BroadcastJSON(map[string]string{"type": "alert"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(msg) != `{"type":"alert"}` {
			t.Fatalf("message = %s", msg)
		}
	}
}

func TestHub_ViewerDisconnect(t *testing.T) {
	hub, m, _, srv := setupHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
	if got := m.ActiveViewers.Load(); got != 0 {
		t.Fatalf("ActiveViewers = %d, want 0", got)
	}
}

func TestHub_BroadcastAfterShutdownDoesNotBlock(t *testing.T) {
	hub, _, cancel, srv := setupHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)
	cancel()
	waitForClients(t, hub, 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Broadcast([]byte("late"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked after shutdown")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("read err = %v, want going-away close", err)
	}
}

func TestOfferJSON_DropsWhenViewersFallBehind(t *testing.T) {
	log, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(log.Close)

	m := metrics.New()
	// Not running, so nothing drains the broadcast buffer.
	hub := NewHubService(log, m)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < broadcastBuffer+4; i++ {
			if err := hub.OfferJSON(map[string]int{"frame": i}); err != nil {
				t.Errorf("OfferJSON: %v", err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OfferJSON blocked on a full buffer")
	}

	if got := m.FramesDropped.Load(); got != 4 {
		t.Fatalf("dropped = %d, want 4", got)
	}
}
