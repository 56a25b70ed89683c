// Package auth tracks the signed-in identity and verifies the tokens that
// establish it.
package auth

import (
	"strings"
	"sync"

	"budgetbuddy/internal/cloudsync"
)

// Identity is a signed-in user.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// Session holds the current identity, if any. The zero value is signed out.
type Session struct {
	mu      sync.RWMutex
	current *Identity
}

var _ cloudsync.IdentityProvider = (*Session)(nil)

func NewSession() *Session {
	return &Session{}
}

// Login replaces the current identity. A blank user id signs out.
func (s *Session) Login(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(id.UserID) == "" {
		s.current = nil
		return
	}
	s.current = &id
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Current returns a copy of the identity, or false when signed out.
func (s *Session) Current() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

func (s *Session) UserID() (string, bool) {
	id, ok := s.Current()
	return id.UserID, ok
}

type fixed string

func (f fixed) UserID() (string, bool) { return string(f), f != "" }

// Fixed returns a provider that always reports userID.
func Fixed(userID string) cloudsync.IdentityProvider {
	return fixed(strings.TrimSpace(userID))
}
