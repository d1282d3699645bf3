package chat

import (
	"context"
	"sync"
	"time"
)

type session struct {
	mu    sync.Mutex
	state State

	// lastActive is guarded by Sessions.mu, not the session lock, so
	// Sweep can read it without contending with an in-flight turn.
	lastActive time.Time
}

// Sessions holds in-memory conversation state keyed by session id. Each
// session carries its own lock so two calls for the same session serialize
// while different sessions proceed independently. Idle sessions are evicted
// after the TTL.
type Sessions struct {
	mu  sync.Mutex
	m   map[string]*session
	ttl time.Duration
	now func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		m:   make(map[string]*session),
		ttl: ttl,
		now: time.Now,
	}
}

// Acquire locks the session, creating it on first use, and returns its
// state together with a release func. The caller must call release when it
// is done mutating the state.
func (s *Sessions) Acquire(sessionID string) (*State, func()) {
	s.mu.Lock()
	sess, ok := s.m[sessionID]
	if !ok {
		sess = &session{state: State{SessionID: sessionID}}
		s.m[sessionID] = sess
	}
	sess.lastActive = s.now()
	s.mu.Unlock()

	sess.mu.Lock()
	return &sess.state, sess.mu.Unlock
}

// Lookup reports whether the session exists without creating it.
func (s *Sessions) Lookup(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[sessionID]
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep evicts sessions idle longer than the TTL and returns how many were
// removed.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted int
	for id, sess := range s.m {
		if sess.lastActive.Before(cutoff) {
			delete(s.m, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps periodically until ctx is cancelled. Intended to run in its
// own goroutine from server startup.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
