// Package session issues and tracks bridge-local bearer tokens layered over
// the host's own cookie authentication.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"sheetbridge.dev/internal/errs"
	"sheetbridge.dev/internal/host"
)

type Session struct {
	Token      string
	Credential host.Credential
	UserID     string
	WorldID    string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Store is the in-memory token registry. One live session per token; creating
// a session for a user that already holds one on the same world evicts the
// older session so racing duplicate logins cannot coexist.
type Store struct {
	mu      sync.Mutex
	byToken map[string]*Session

	idleExpiry time.Duration
	now        func() time.Time
	log        *log.Logger
}

func NewStore(idleExpiry time.Duration, logger *log.Logger) *Store {
	if idleExpiry <= 0 {
		idleExpiry = 24 * time.Hour
	}
	return &Store{
		byToken:    map[string]*Session{},
		idleExpiry: idleExpiry,
		now:        time.Now,
		log:        logger,
	}
}

func (s *Store) Create(cred host.Credential, userID, worldID string) (string, error) {
	if cred.Cookie == "" {
		return "", errs.E(errs.Auth, "missing host credential")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for tok, sess := range s.byToken {
		if sess.UserID == userID && sess.WorldID == worldID {
			delete(s.byToken, tok)
			if s.log != nil {
				s.log.Printf("evicted prior session user=%s", userID)
			}
		}
	}

	now := s.now()
	token := uuid.NewString()
	s.byToken[token] = &Session{
		Token:      token,
		Credential: cred,
		UserID:     userID,
		WorldID:    worldID,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	return token, nil
}

// Validate resolves a bearer token, refreshing its last-seen time. A revoked
// or unknown token fails closed; there is no fallback to stale credentials.
func (s *Store) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, errs.E(errs.Auth, "missing token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return nil, errs.E(errs.Auth, "unknown token")
	}
	now := s.now()
	if now.Sub(sess.LastSeenAt) > s.idleExpiry {
		delete(s.byToken, token)
		return nil, errs.E(errs.Auth, "token expired")
	}
	sess.LastSeenAt = now

	cp := *sess
	return &cp, nil
}

func (s *Store) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
}

func (s *Store) RevokeAll(reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.byToken)
	s.byToken = map[string]*Session{}
	if n > 0 && s.log != nil {
		s.log.Printf("revoked %d session(s): %s", n, reason)
	}
	return n
}

// RevokeOnWorldChange drops every session when the host's world identity
// changes: user ids are not guaranteed stable across worlds, so no session
// established against the old world may survive.
func (s *Store) RevokeOnWorldChange(newWorldID string) int {
	return s.RevokeAll("world changed to " + newWorldID)
}

// PrimaryCredential returns the most recently seen session's host
// credential; the reconciler polls authenticated host endpoints with it.
func (s *Store) PrimaryCredential() (host.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Session
	for _, sess := range s.byToken {
		if best == nil || sess.LastSeenAt.After(best.LastSeenAt) {
			best = sess
		}
	}
	if best == nil {
		return host.Credential{}, false
	}
	return best.Credential, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}
