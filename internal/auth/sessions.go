// Package auth verifies credentials and issues opaque session tokens.
// Sessions live in memory; restarting the server logs everyone out.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"haybase/internal/core"
	"haybase/internal/ledger"
)

// CookieName is the session cookie the HTTP layer reads and writes.
const CookieName = "haybase_session"

type session struct {
	userID    string
	expiresAt time.Time
}

// Sessions authenticates users against the store and tracks live
// session tokens.
type Sessions struct {
	users ledger.UserStore
	ttl   time.Duration

	mu     sync.RWMutex
	active map[string]session

	done chan struct{}
}

func NewSessions(users ledger.UserStore, ttl time.Duration) *Sessions {
	s := &Sessions{
		users:  users,
		ttl:    ttl,
		active: make(map[string]session),
		done:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Close stops the expiry sweeper.
func (s *Sessions) Close() {
	close(s.done)
}

func (s *Sessions) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Sessions) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.active {
		if now.After(sess.expiresAt) {
			delete(s.active, token)
		}
	}
}

// Login verifies name and password and mints a session token. The
// error is the same for an unknown user and a wrong password.
func (s *Sessions) Login(ctx context.Context, name, password string) (string, core.User, error) {
	user, err := s.users.UserByName(ctx, name)
	if err != nil {
		// Burn a comparison anyway so the unknown-user path is not
		// observably faster.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return "", core.User{}, core.Unauthenticated()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", core.User{}, core.Unauthenticated()
	}

	token, err := newToken()
	if err != nil {
		return "", core.User{}, fmt.Errorf("mint session token: %w", err)
	}
	s.mu.Lock()
	s.active[token] = session{userID: user.ID, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return token, user, nil
}

// Logout drops the session. Unknown tokens are a no-op.
func (s *Sessions) Logout(token string) {
	s.mu.Lock()
	delete(s.active, token)
	s.mu.Unlock()
}

// Resolve maps a session token to the owning user id. Expired and
// unknown tokens both yield Unauthenticated.
func (s *Sessions) Resolve(token string) (string, error) {
	s.mu.RLock()
	sess, ok := s.active[token]
	s.mu.RUnlock()
	if !ok || time.Now().After(sess.expiresAt) {
		return "", core.Unauthenticated()
	}
	return sess.userID, nil
}

// TTL returns the configured session lifetime, for cookie max-age.
func (s *Sessions) TTL() time.Duration { return s.ttl }

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives a bcrypt hash for seeding users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
