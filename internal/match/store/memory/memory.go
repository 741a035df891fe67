// Package memory provides a single-process MatchStore for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gokatarajesh/score-duel/internal/match"
)

// Store keeps matches in maps guarded by a RWMutex. Records are copied on the
// way in and out so callers never alias stored state.
type Store struct {
	mu      sync.RWMutex
	matches map[uuid.UUID]*match.Match
	lobby   []uuid.UUID
	players map[string][]uuid.UUID
	total   int64
}

var _ match.Store = (*Store)(nil)

// New creates an empty memory store.
func New() *Store {
	return &Store{
		matches: make(map[uuid.UUID]*match.Match),
		players: make(map[string][]uuid.UUID),
	}
}

func (s *Store) CreateMatch(_ context.Context, m *match.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[m.ID]; exists {
		return match.ErrClaimConflict
	}

	stored := m.Clone()
	s.matches[m.ID] = stored
	s.total++
	if stored.State == match.StateWaiting {
		s.enqueue(stored)
	}
	for _, name := range stored.Players() {
		s.players[name] = append(s.players[name], stored.ID)
	}
	return nil
}

func (s *Store) GetMatch(_ context.Context, id uuid.UUID) (*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, match.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) UpdateMatch(_ context.Context, next *match.Match, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.matches[next.ID]
	if !ok {
		return match.ErrNotFound
	}
	if current.Version != expectedVersion {
		return match.ErrClaimConflict
	}

	stored := next.Clone()
	stored.Version = expectedVersion + 1
	next.Version = stored.Version
	s.matches[next.ID] = stored

	if current.State == match.StateWaiting && stored.State != match.StateWaiting {
		s.dequeue(stored.ID)
	}
	if current.Opponent == nil && stored.Opponent != nil {
		name := stored.Opponent.PlayerName
		s.players[name] = append(s.players[name], stored.ID)
	}
	return nil
}

func (s *Store) ListWaiting(_ context.Context, offset, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.lobby) || limit <= 0 {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.lobby) {
		end = len(s.lobby)
	}
	out := make([]uuid.UUID, end-offset)
	copy(out, s.lobby[offset:end])
	return out, nil
}

func (s *Store) ListPlayerMatches(_ context.Context, player string, limit int) ([]*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.players[player]
	out := make([]*match.Match, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if m, ok := s.matches[ids[i]]; ok {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (s *Store) Counts(_ context.Context) (match.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return match.Stats{
		OpenLobbies:   int64(len(s.lobby)),
		TotalMatches:  s.total,
		ActivePlayers: int64(len(s.players)),
	}, nil
}

// enqueue inserts keeping the lobby ordered by creation time, then id.
func (s *Store) enqueue(m *match.Match) {
	idx := sort.Search(len(s.lobby), func(i int) bool {
		other := s.matches[s.lobby[i]]
		if other.CreatedAt.Equal(m.CreatedAt) {
			return other.ID.String() > m.ID.String()
		}
		return other.CreatedAt.After(m.CreatedAt)
	})
	s.lobby = append(s.lobby, uuid.Nil)
	copy(s.lobby[idx+1:], s.lobby[idx:])
	s.lobby[idx] = m.ID
}

func (s *Store) dequeue(id uuid.UUID) {
	for i, queued := range s.lobby {
		if queued == id {
			s.lobby = append(s.lobby[:i], s.lobby[i+1:]...)
			return
		}
	}
}
