package host

import (
	"log"
	"sync"
)

// SocketHub owns one live host socket per bridge session token. The
// reconciler asks it whether any session has been confirmed by the host; the
// API layer opens and closes channels as sessions come and go.
type SocketHub struct {
	url string
	log *log.Logger

	mu      sync.Mutex
	byToken map[string]*Socket
}

func NewSocketHub(socketURL string, logger *log.Logger) *SocketHub {
	return &SocketHub{
		url:     socketURL,
		log:     logger,
		byToken: map[string]*Socket{},
	}
}

func (h *SocketHub) Open(token string, cred Credential) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old := h.byToken[token]; old != nil {
		go old.Close()
	}
	s := NewSocket(h.url, cred.Cookie, h.log)
	h.byToken[token] = s
	s.Start()
}

func (h *SocketHub) Close(token string) {
	h.mu.Lock()
	s := h.byToken[token]
	delete(h.byToken, token)
	h.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (h *SocketHub) CloseAll() {
	h.mu.Lock()
	sockets := make([]*Socket, 0, len(h.byToken))
	for _, s := range h.byToken {
		sockets = append(sockets, s)
	}
	h.byToken = map[string]*Socket{}
	h.mu.Unlock()
	for _, s := range sockets {
		s.Close()
	}
}

// Authenticated reports whether the host has confirmed the session behind a
// specific token.
func (h *SocketHub) Authenticated(token string) bool {
	h.mu.Lock()
	s := h.byToken[token]
	h.mu.Unlock()
	return s != nil && s.Authenticated()
}

// AnyAuthenticated reports whether any live channel is confirmed; the step
// machine uses this as the process-level isAuthenticated input.
func (h *SocketHub) AnyAuthenticated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.byToken {
		if s.Authenticated() {
			return true
		}
	}
	return false
}
