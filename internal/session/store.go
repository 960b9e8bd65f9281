package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"kakeibo/internal/auth"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

// Store keeps sessions in memory only. Nothing survives a restart.
type Store struct {
	source auth.ProviderSource
	idle   time.Duration
	clock  clockwork.Clock

	mu       sync.Mutex
	sessions map[string]*State
	onEvict  []func(id string)
}

func NewStore(source auth.ProviderSource, idle time.Duration, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		source:   source,
		idle:     idle,
		clock:    clock,
		sessions: map[string]*State{},
	}
}

// OnEvict registers fn to run after a session is deleted or expires.
func (s *Store) OnEvict(fn func(id string)) {
	s.mu.Lock()
	s.onEvict = append(s.onEvict, fn)
	s.mu.Unlock()
}

// Create starts a signed-out session with a random id.
func (s *Store) Create() *State {
	st := NewState(uuid.NewString(), auth.NewGate(s.source))
	st.touch(s.clock.Now())
	s.mu.Lock()
	s.sessions[st.ID()] = st
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	return st
}

// Get returns a live session and marks it as used.
func (s *Store) Get(id string) (*State, bool) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	now := s.clock.Now()
	if now.Sub(st.idleSince()) > s.idle {
		s.Delete(id)
		metrics.SessionsExpired.Inc()
		return nil, false
	}
	st.touch(now)
	return st, true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	hooks := s.onEvict
	s.mu.Unlock()
	if !ok {
		return
	}
	st.SignOut()
	metrics.ActiveSessions.Set(float64(n))
	for _, fn := range hooks {
		fn(id)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops every session idle for longer than the timeout.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	var expired []string
	for id, st := range s.sessions {
		if now.Sub(st.idleSince()) > s.idle {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.Delete(id)
	}
	if len(expired) > 0 {
		metrics.SessionsExpired.Add(float64(len(expired)))
	}
	return len(expired)
}

// Run sweeps on every interval until ctx ends.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.Sweep(); n > 0 {
				slog.InfoContext(ctx, "Expired idle sessions", log.FieldComponent, log.ComponentSession, "count", n)
			}
		}
	}
}
