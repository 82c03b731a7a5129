// Package memstore keeps leagues and draft pools in memory. It backs tests
// and the "memory" store driver.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	leagues map[string]engine.League
	pools   map[string][]engine.Player
	picks   map[string][]store.PickRecord

	// SaveErr, when set, is returned by every SaveDraft call.
	SaveErr error
	saves   int
}

func New() *Store {
	return &Store{
		leagues: make(map[string]engine.League),
		pools:   make(map[string][]engine.Player),
		picks:   make(map[string][]store.PickRecord),
	}
}

// Put stores a league and its draft pool, replacing any previous value.
func (s *Store) Put(l engine.League, pool []engine.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leagues[l.ID] = l.Clone()
	s.pools[l.ID] = slices.Clone(pool)
}

func (s *Store) League(ctx context.Context, leagueID string) (engine.League, error) {
	if err := ctx.Err(); err != nil {
		return engine.League{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leagues[leagueID]
	if !ok {
		return engine.League{}, store.ErrNotFound
	}
	return l.Clone(), nil
}

func (s *Store) SaveDraft(ctx context.Context, leagueID string, expectVersion int64, change store.DraftChange) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return 0, s.SaveErr
	}
	l, ok := s.leagues[leagueID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if l.Version != expectVersion {
		return 0, store.ErrVersionConflict
	}

	l = l.Clone()
	if p := change.Pick; p != nil {
		for _, t := range l.Teams {
			if slices.Contains(t.PickedPlayers, p.PlayerID) {
				return 0, store.ErrPlayerTaken
			}
		}
		idx := l.TeamIndex(p.OwnerID)
		if idx < 0 {
			return 0, store.ErrNotFound
		}
		l.Teams[idx].PickedPlayers = append(l.Teams[idx].PickedPlayers, p.PlayerID)
		s.picks[leagueID] = append(s.picks[leagueID], *p)
	}
	l.Round = change.Round
	l.Version++
	s.leagues[leagueID] = l
	s.saves++
	return l.Version, nil
}

func (s *Store) UpcomingDrafts(ctx context.Context, from, to time.Time) ([]engine.League, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.League
	for _, l := range s.leagues {
		start := l.Round.StartDate
		if l.Round.Completed || start.Before(from) || start.After(to) {
			continue
		}
		out = append(out, l.Clone())
	}
	slices.SortFunc(out, func(a, b engine.League) int { return a.Round.StartDate.Compare(b.Round.StartDate) })
	return out, nil
}

func (s *Store) DraftPool(ctx context.Context, leagueID string) ([]engine.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools[leagueID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(pool), nil
}

// Picks returns the pick records written for a league, oldest first.
func (s *Store) Picks(leagueID string) []store.PickRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.picks[leagueID])
}

// Saves counts successful SaveDraft calls.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Store) SetSaveErr(err error) {
	s.mu.Lock()
	s.SaveErr = err
	s.mu.Unlock()
}

// Seed is the JSON layout accepted by Load.
type Seed struct {
	Leagues []SeedLeague `json:"leagues"`
}

type SeedLeague struct {
	engine.League
	Pool []engine.Player `json:"pool"`
}

// Load reads a seed document into a new Store.
func Load(r io.Reader) (*Store, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	s := New()
	for _, l := range seed.Leagues {
		if l.ID == "" {
			return nil, errors.New("seed league without id")
		}
		if l.Round.TurnDirection == "" {
			l.Round.TurnDirection = engine.DirectionForward
		}
		s.Put(l.League, l.Pool)
	}
	return s, nil
}

// LoadFile is Load on a file path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

var (
	_ store.LeagueStore  = (*Store)(nil)
	_ store.PlayerSource = (*Store)(nil)
)
