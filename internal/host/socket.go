package host

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// errHostShutdown routes a host-announced shutdown through the same reset and
// backoff path as a dropped connection.
var errHostShutdown = errors.New("host announced shutdown")

// Socket is the live session channel to the host. The host confirms a login
// asynchronously over this channel (a "session" frame naming the userId), so
// the reconciler treats socket state as the source of truth for
// isAuthenticated. The read loop reconnects with capped backoff and never
// surfaces errors to callers; a dropped socket simply reads as unauthenticated.
type Socket struct {
	url    string
	cookie string
	log    *log.Logger

	mu sync.RWMutex

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}

	conn      *websocket.Conn
	connected bool
	userID    string
	lastErr   string
}

type socketFrame struct {
	Type   string          `json:"type"`
	UserID string          `json:"userId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func NewSocket(url, cookie string, logger *log.Logger) *Socket {
	return &Socket{
		url:    url,
		cookie: cookie,
		log:    logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *Socket) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.disconnect()
		<-s.done
	})
}

// Authenticated reports whether the host has confirmed the session on the
// live channel.
func (s *Socket) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.userID != ""
}

func (s *Socket) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Socket) disconnect() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

func (s *Socket) run() {
	defer close(s.done)

	backoff := 200 * time.Millisecond
	for {
		select {
		case <-s.stop:
			s.disconnect()
			return
		default:
		}

		if err := s.connectAndReadLoop(); err != nil {
			s.mu.Lock()
			s.connected = false
			s.userID = ""
			s.lastErr = err.Error()
			s.mu.Unlock()
			select {
			case <-s.stop:
				s.disconnect()
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
				if backoff > 5*time.Second {
					backoff = 5 * time.Second
				}
			}
			continue
		}
		return
	}
}

func (s *Socket) connectAndReadLoop() error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	hdr := http.Header{}
	hdr.Set("Cookie", "session="+s.cookie)
	conn, resp, err := d.Dial(s.url, hdr)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.lastErr = ""
	s.mu.Unlock()

	for {
		select {
		case <-s.stop:
			_ = conn.Close()
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return err
		}
		var f socketFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			continue
		}
		switch f.Type {
		case "session":
			s.mu.Lock()
			s.userID = f.UserID
			s.mu.Unlock()
			if s.log != nil {
				s.log.Printf("session confirmed user=%s", f.UserID)
			}
		case "shutdown":
			// Host is going down; drop the channel and fall back to the
			// reconnect loop. The session confirmation must not outlive the
			// channel it arrived on.
			_ = conn.Close()
			return errHostShutdown
		}
	}
}
