package auth

import (
	"context"
	"sync"
)

// Session holds the signed-in user for the lifetime of a process.
type Session struct {
	svc  *Service
	mu   sync.RWMutex
	user *User
}

// NewSession creates an empty session over svc.
func NewSession(svc *Service) *Session {
	return &Session{svc: svc}
}

// Restore validates a stored token by calling Me. An invalid token logs the
// user out. It returns the restored user, or nil when nobody is signed in.
func (s *Session) Restore(ctx context.Context) (*User, error) {
	ok, err := s.svc.IsAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.setUser(nil)
		return nil, nil
	}

	user, err := s.svc.Me(ctx)
	if err != nil {
		s.svc.logger.Info().Err(err).Msg("Token validation failed, clearing authentication")
		if logoutErr := s.svc.Logout(ctx); logoutErr != nil {
			return nil, logoutErr
		}
		s.setUser(nil)
		return nil, nil
	}

	s.setUser(user)
	return user, nil
}

// SignIn logs in and remembers the user.
func (s *Session) SignIn(ctx context.Context, email, password string) (*User, error) {
	resp, err := s.svc.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.setUser(&resp.User)
	return &resp.User, nil
}

// SignUp registers and remembers the user.
func (s *Session) SignUp(ctx context.Context, req RegisterRequest) (*User, error) {
	resp, err := s.svc.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.setUser(&resp.User)
	return &resp.User, nil
}

// SignOut logs out and forgets the user.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.svc.Logout(ctx); err != nil {
		return err
	}
	s.setUser(nil)
	return nil
}

// Refresh re-reads the user from the server. On failure the current user is kept.
func (s *Session) Refresh(ctx context.Context) (*User, error) {
	user, err := s.svc.Me(ctx)
	if err != nil {
		s.svc.logger.Warn().Err(err).Msg("Error refreshing user")
		return nil, err
	}
	s.setUser(user)
	return user, nil
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) setUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	s.user = &cp
}
