package game

import (
	"sort"
	"sync"
)

// Delta describes a single atomic mutation of a game document. Nil fields
// are left untouched. HomeScoreAdd/AwayScoreAdd are increments applied under
// the game lock, so concurrent scoring events never lose points; the pointer
// fields are absolute sets for administrative overrides. AppendHighlight
// adds to the end of the highlight log; the log itself is never replaced
// wholesale.
type Delta struct {
	HomeScore       *int
	AwayScore       *int
	HomeScoreAdd    int
	AwayScoreAdd    int
	Quarter         *int
	Clock           *string
	Status          *Status
	AppendHighlight *Highlight
}

// Store is the persistence contract for game documents. Implementations
// must apply AtomicUpdate as a serialized read-modify-write per game ID so
// that concurrent highlight appends are never lost.
type Store interface {
	Get(gameID string) (*Game, error)
	Create(g *Game) error
	AtomicUpdate(gameID string, delta Delta) (*Game, error)
	ListRecent(n int) []*Game
	Delete(gameID string) error
}

// MemoryStore is an in-memory Store guarded by a per-game mutex.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*gameEntry
	inUse func(gameID string) bool
}

type gameEntry struct {
	mu   sync.Mutex
	game *Game
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*gameEntry),
	}
}

// SetInUseCheck installs the guard consulted before Delete. A game whose
// room still has subscribers cannot be removed.
func (s *MemoryStore) SetInUseCheck(fn func(gameID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse = fn
}

// Get returns a copy of the game, or ErrGameNotFound.
func (s *MemoryStore) Get(gameID string) (*Game, error) {
	entry, err := s.entry(gameID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.game.Clone(), nil
}

// Create adds a new game document. The document is cloned on the way in.
func (s *MemoryStore) Create(g *Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[g.ID]; ok {
		return ErrGameExists
	}
	s.games[g.ID] = &gameEntry{game: g.Clone()}
	return nil
}

// AtomicUpdate applies delta under the game's lock and returns the updated
// snapshot. Status regressions and quarter decreases are rejected with
// ErrInvalidState before anything is written.
func (s *MemoryStore) AtomicUpdate(gameID string, delta Delta) (*Game, error) {
	entry, err := s.entry(gameID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	g := entry.game
	if delta.Status != nil && !g.Status.CanTransitionTo(*delta.Status) {
		return nil, ErrInvalidState
	}
	if delta.Quarter != nil && *delta.Quarter < g.Quarter {
		return nil, ErrInvalidState
	}

	if delta.HomeScore != nil {
		g.HomeScore = *delta.HomeScore
	}
	if delta.AwayScore != nil {
		g.AwayScore = *delta.AwayScore
	}
	g.HomeScore += delta.HomeScoreAdd
	g.AwayScore += delta.AwayScoreAdd
	if delta.Quarter != nil {
		g.Quarter = *delta.Quarter
	}
	if delta.Clock != nil {
		g.Clock = *delta.Clock
	}
	if delta.Status != nil {
		g.Status = *delta.Status
	}
	if delta.AppendHighlight != nil {
		g.Highlights = append(g.Highlights, *delta.AppendHighlight)
	}

	return g.Clone(), nil
}

// ListRecent returns up to n games, newest scheduling date first.
func (s *MemoryStore) ListRecent(n int) []*Game {
	s.mu.RLock()
	entries := make([]*gameEntry, 0, len(s.games))
	for _, entry := range s.games {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	games := make([]*Game, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		games = append(games, entry.game.Clone())
		entry.mu.Unlock()
	}

	sort.Slice(games, func(i, j int) bool {
		return games[i].Date.After(games[j].Date)
	})

	if n > 0 && len(games) > n {
		games = games[:n]
	}
	return games
}

// Delete removes a game. It refuses while the game's room still has
// subscribers so broadcasts never reference a vanished document.
func (s *MemoryStore) Delete(gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return ErrGameNotFound
	}
	if s.inUse != nil && s.inUse(gameID) {
		return ErrRoomOccupied
	}
	delete(s.games, gameID)
	return nil
}

func (s *MemoryStore) entry(gameID string) (*gameEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return entry, nil
}
