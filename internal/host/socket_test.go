package host

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// socketTestServer confirms the session on the first connection only, sends
// the shutdown frame when told to, and holds later connections open
// unconfirmed so reconnects are observable.
type socketTestServer struct {
	mu       sync.Mutex
	conns    int
	shutdown chan struct{}
}

func newSocketTestServer() *socketTestServer {
	return &socketTestServer{shutdown: make(chan struct{})}
}

func (ts *socketTestServer) handler(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	c, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	ts.mu.Lock()
	ts.conns++
	first := ts.conns == 1
	ts.mu.Unlock()

	if first {
		_ = c.WriteJSON(map[string]string{"type": "session", "userId": "u1"})
		<-ts.shutdown
		_ = c.WriteJSON(map[string]string{"type": "shutdown"})
	}
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (ts *socketTestServer) connCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.conns
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSocketShutdownFrameClearsAuthentication(t *testing.T) {
	ts := newSocketTestServer()
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	s := NewSocket("ws"+strings.TrimPrefix(srv.URL, "http"), "hc", nil)
	s.Start()
	defer s.Close()

	waitUntil(t, "session confirmation", s.Authenticated)

	// The confirmation must not survive the channel it arrived on.
	close(ts.shutdown)
	waitUntil(t, "authentication reset after shutdown", func() bool { return !s.Authenticated() })

	// And the loop keeps dialing rather than giving up.
	waitUntil(t, "reconnect attempt", func() bool { return ts.connCount() >= 2 })
	if s.Authenticated() {
		t.Fatal("unconfirmed reconnect must not read as authenticated")
	}
}

func TestSocketCloseStopsReconnects(t *testing.T) {
	ts := newSocketTestServer()
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()
	defer close(ts.shutdown) // release the handler before the server drains

	s := NewSocket("ws"+strings.TrimPrefix(srv.URL, "http"), "hc", nil)
	s.Start()
	waitUntil(t, "first connection", func() bool { return ts.connCount() >= 1 })

	s.Close()
	if s.Authenticated() {
		t.Fatal("closed socket must not report authenticated")
	}
	// Close blocks until the run loop exits, so no further dials happen.
	n := ts.connCount()
	time.Sleep(50 * time.Millisecond)
	if got := ts.connCount(); got != n {
		t.Fatalf("socket kept dialing after Close: %d -> %d", n, got)
	}
}
