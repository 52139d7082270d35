package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qtcord/room-tender/discordapi"
)

const sessionCookieName = "rt_session"

// session carries the logged-in dashboard user and their Discord access
// token for identity calls.
type session struct {
	Token       string
	AccessToken string
	User        discordapi.User
	Expiry      time.Time
}

// sessionStore is an in-memory session table with TTL expiry. Sessions do
// not survive a restart; managers just log in again.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
}

func newSessionStore(ctx context.Context, ttl time.Duration) *sessionStore {
	s := &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
	}
	go s.cleanupLoop(ctx)
	return s
}

func (s *sessionStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func (s *sessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for tok, sess := range s.sessions {
		if now.After(sess.Expiry) {
			delete(s.sessions, tok)
		}
	}
}

// Create mints a new session token for the user.
func (s *sessionStore) Create(accessToken string, user discordapi.User) *session {
	sess := &session{
		Token:       uuid.NewString(),
		AccessToken: accessToken,
		User:        user,
		Expiry:      time.Now().Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for a token, or nil if unknown or expired.
func (s *sessionStore) Get(token string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok || time.Now().After(sess.Expiry) {
		return nil
	}
	return sess
}

func (s *sessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// sessionFromRequest resolves the session cookie, returning nil when the
// request carries no valid session.
func (h *Handlers) sessionFromRequest(r *http.Request) *session {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	return h.sessions.Get(c.Value)
}
