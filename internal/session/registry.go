package session

import (
	"slices"
	"sort"
	"sync"
)

// Registry is the process-wide table of live draft rooms keyed by league id.
// Every write goes through Validate; readers always receive copies.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(leagueID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[leagueID]
	if !ok {
		return Session{}, false
	}
	return s.Clone(), true
}

// Create stores a new session. It fails with ErrDuplicateSession if the league
// already has one.
func (r *Registry) Create(s Session) (Session, error) {
	s = s.Clone()
	if s.DraftStatus == "" {
		s.DraftStatus = StatusWaiting
	}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.LeagueID]; exists {
		return Session{}, ErrDuplicateSession
	}
	r.sessions[s.LeagueID] = &s
	return s.Clone(), nil
}

// Update applies mutate to a copy of the session and commits it if mutate
// succeeds and the result is still valid. The draft pool is immutable.
func (r *Registry) Update(leagueID string, mutate func(s *Session) error) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[leagueID]
	if !ok {
		return Session{}, ErrNotFound
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		return Session{}, err
	}
	if next.LeagueID != leagueID {
		return Session{}, invalid("leagueId cannot change")
	}
	if !slices.Equal(next.DraftPool, current.DraftPool) {
		return Session{}, ErrPoolChanged
	}
	if err := next.Validate(); err != nil {
		return Session{}, err
	}

	r.sessions[leagueID] = &next
	return next.Clone(), nil
}

func (r *Registry) Delete(leagueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[leagueID]; !ok {
		return false
	}
	delete(r.sessions, leagueID)
	return true
}

// DeleteIfEmpty removes the session only when nobody is in it, so a join that
// races with a leave or a sweep is never lost.
func (r *Registry) DeleteIfEmpty(leagueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[leagueID]
	if !ok || len(s.Participants) > 0 {
		return false
	}
	delete(r.sessions, leagueID)
	return true
}

// Snapshot returns a copy of every session keyed by league id.
func (r *Registry) Snapshot() map[string]Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Session, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s.Clone()
	}
	return out
}

// LeagueIDs lists the leagues with a live session, sorted.
func (r *Registry) LeagueIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
