package push

import (
	"context"
	"sync"
)

// StaticSource is an in-process Source with a fixed token. Deliver and
// Respond inject traffic.
type StaticSource struct {
	token string

	mu        sync.Mutex
	messages  chan Message
	responses chan Response
	closed    bool
}

// NewStaticSource returns a source that reports token.
func NewStaticSource(token string) *StaticSource {
	return &StaticSource{
		token:     token,
		messages:  make(chan Message, 16),
		responses: make(chan Response, 16),
	}
}

// Token returns the fixed token.
func (s *StaticSource) Token(context.Context) (string, error) {
	return s.token, nil
}

// Listen returns the injection channels.
func (s *StaticSource) Listen(context.Context) (<-chan Message, <-chan Response, error) {
	return s.messages, s.responses, nil
}

// Deliver injects a message. It reports false once the source is closed.
func (s *StaticSource) Deliver(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.messages <- m
	return true
}

// Respond injects a user response. It reports false once the source is closed.
func (s *StaticSource) Respond(r Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.responses <- r
	return true
}

// Close closes both channels. Safe to call more than once.
func (s *StaticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.messages)
		close(s.responses)
	}
	return nil
}
