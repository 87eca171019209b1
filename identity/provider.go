// Package identity exposes the authenticated user identity used for
// draft ownership checks, and session-change notification. The rest of
// the system treats the identity as an opaque token; authentication
// itself happens elsewhere.
package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAuthenticated is returned when no session is active.
var ErrNotAuthenticated = errors.New("no authenticated identity")

// Identity is the authenticated user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Provider supplies the current identity and session-change
// notification.
type Provider interface {
	// Current returns the active identity, or ErrNotAuthenticated.
	Current(ctx context.Context) (Identity, error)

	// Subscribe registers a callback invoked on session changes with
	// the new identity, or ok=false on sign-out. It returns an
	// unsubscribe function.
	Subscribe(fn func(id Identity, ok bool)) (unsubscribe func())
}

// Static is a Provider with a fixed identity, used for single-user
// deployments and tests. The zero value is signed out.
type Static struct {
	mu       sync.RWMutex
	identity Identity
	signedIn bool

	subMu sync.Mutex
	subs  map[int]func(Identity, bool)
	next  int
}

// NewStatic creates a signed-in static provider.
func NewStatic(id, email string) *Static {
	return &Static{
		identity: Identity{ID: id, Email: email},
		signedIn: true,
		subs:     make(map[int]func(Identity, bool)),
	}
}

// Current implements Provider.
func (s *Static) Current(_ context.Context) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.signedIn {
		return Identity{}, ErrNotAuthenticated
	}
	return s.identity, nil
}

// Subscribe implements Provider.
func (s *Static) Subscribe(fn func(Identity, bool)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(Identity, bool))
	}
	key := s.next
	s.next++
	s.subs[key] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, key)
	}
}

// Set installs a new session and notifies subscribers.
func (s *Static) Set(id Identity) {
	s.mu.Lock()
	s.identity = id
	s.signedIn = true
	s.mu.Unlock()
	s.notify(id, true)
}

// SignOut clears the session and notifies subscribers.
func (s *Static) SignOut() {
	s.mu.Lock()
	s.identity = Identity{}
	s.signedIn = false
	s.mu.Unlock()
	s.notify(Identity{}, false)
}

func (s *Static) notify(id Identity, ok bool) {
	s.subMu.Lock()
	fns := make([]func(Identity, bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(id, ok)
	}
}
