// Package session holds the identity of the logged-in user. A Session starts
// empty, is set by a successful Login and cleared by Logout. It is passed to
// every component that needs identity; there is no package-level session.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

// Authenticator verifies credentials. *backend.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (backend.LoginResult, error)
}

// User is the identity held by a session.
type User struct {
	Email   string
	LoginAt time.Time
}

// ErrInvalidCredentials is returned when the backend rejects a login.
var ErrInvalidCredentials = errors.NewStd("invalid email or password")

// Session is safe for concurrent use.
type Session struct {
	auth Authenticator
	log  logger.Logger

	mu   sync.RWMutex
	user *User
}

// New creates an empty session.
func New(auth Authenticator, log logger.Logger) *Session {
	return &Session{auth: auth, log: log.Module("session")}
}

// Login authenticates against the backend and stores the user on success.
// A rejected login leaves any current user untouched.
func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errors.Newf("email and password are required").
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	result, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.log.Warn("login request failed",
			logger.String("email", logger.RedactEmail(email)),
			logger.Error(err))
		return err
	}
	if !result.Success {
		return errors.New(ErrInvalidCredentials).
			Component("session").
			Category(errors.CategoryAuth).
			Build()
	}

	s.mu.Lock()
	s.user = &User{Email: email, LoginAt: time.Now()}
	s.mu.Unlock()

	s.log.Info("user logged in", logger.String("email", logger.RedactEmail(email)))
	return nil
}

// Restore sets the user without contacting the backend, for identities
// carried by a verified cookie.
func (s *Session) Restore(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.user = &u
}

// Logout clears the current user.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

// Current returns the logged-in user.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// IsAuthenticated reports whether a user is logged in.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}
