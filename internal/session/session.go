// Package session tracks the identity signed in on this process.
//
// A Session is either anonymous or bound to exactly one user. It lives only
// in memory: there is no expiry and nothing survives a restart. The
// composition root owns the single instance and hands it to the services and
// middleware that need it.
package session

import (
	"sync"

	"fieldreport/internal/models"
)

// Session holds the current identity.
type Session struct {
	mu   sync.RWMutex
	user *models.User
}

// New returns an anonymous session.
func New() *Session {
	return &Session{}
}

// SignIn binds the session to user.
func (s *Session) SignIn(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.user = &u
}

// SignOut returns the session to anonymous and reports whether a user was
// signed in.
func (s *Session) SignOut() (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.user
	s.user = nil
	return prev, prev != nil
}

// User returns a copy of the current user, or nil when anonymous.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// UserID returns the current user's ID, or 0 when anonymous. Callers must
// treat 0 as "no user".
func (s *Session) UserID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// FullName returns the current user's full name, or "User".
func (s *Session) FullName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || s.user.FullName == nil || *s.user.FullName == "" {
		return "User"
	}
	return *s.user.FullName
}
