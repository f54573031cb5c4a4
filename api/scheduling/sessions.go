package scheduling

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/crewplan/core/planner"
)

// SessionHeader carries the planner session id between calls.
const SessionHeader = "X-Session-ID"

type session struct {
	p        *planner.Planner
	lastUsed time.Time
}

// Sessions hands out planner sessions keyed by an opaque id. Sessions idle
// for longer than the ttl are dropped.
type Sessions struct {
	newPlanner func() *planner.Planner
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions creates a session registry. A non-positive ttl keeps sessions
// for 30 minutes.
func NewSessions(newPlanner func() *planner.Planner, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		newPlanner: newPlanner,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
}

// Get returns the session for id, creating a new one when id is empty,
// unknown or expired. The returned id identifies the session handed out.
func (s *Sessions) Get(id string) (string, *planner.Planner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.ttl {
			delete(s.sessions, k)
		}
	}
	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.lastUsed = now
		return id, sess.p
	}
	id = uuid.NewString()
	sess := &session{p: s.newPlanner(), lastUsed: now}
	s.sessions[id] = sess
	return id, sess.p
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
