// Package auth tracks the signed-in identity and publishes identity changes
// to the containers that scope their data by user.
package auth

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/logging"
)

// Identity is the identity provider's view of a signed-in user.
type Identity struct {
	UID   string
	Email string
}

// Event reports an identity change. A nil Identity means signed out.
type Event struct {
	Identity *Identity
}

// Session holds the current identity. Each subscriber gets the current state
// on subscribe and the latest state after every change.
type Session struct {
	verifier TokenVerifier
	log      *zap.Logger

	mu      sync.Mutex
	current *Identity
	subs    map[int]chan Event
	nextID  int
	closed  bool
}

func NewSession(verifier TokenVerifier, log *zap.Logger) *Session {
	return &Session{
		verifier: verifier,
		log:      logging.OrNop(log).Named("auth"),
		subs:     make(map[int]chan Event),
	}
}

// Current returns a copy of the signed-in identity, or nil.
func (s *Session) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.current)
}

// Subscribe returns the change stream and an unsubscribe func.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	ch <- Event{Identity: copyIdentity(s.current)}
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// SignInWithIDToken verifies a Firebase ID token and makes its subject the
// current identity.
func (s *Session) SignInWithIDToken(ctx context.Context, idToken string) (*Identity, error) {
	id, err := VerifyIdentity(ctx, s.verifier, idToken)
	if err != nil {
		s.log.Warn("sign in rejected", zap.Error(err))
		return nil, err
	}
	s.SignIn(id)
	return &id, nil
}

// SignIn sets an already verified identity.
func (s *Session) SignIn(id Identity) {
	s.log.Info("signed in", zap.String("uid", id.UID))
	s.set(&id)
}

func (s *Session) SignOut() {
	s.log.Info("signed out")
	s.set(nil)
}

// Close ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Session) set(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- Event{Identity: copyIdentity(id)}
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
