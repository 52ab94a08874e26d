package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the lifecycle phase of a game. Transitions only move
// forward: scheduled -> live -> final.
type Status int

const (
	StatusScheduled Status = iota
	StatusLive
	StatusFinal
)

var statusNames = map[Status]string{
	StatusScheduled: "scheduled",
	StatusLive:      "live",
	StatusFinal:     "final",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// MarshalJSON renders the status as its lowercase name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a lowercase status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown game status: %q", name)
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. Staying on the same status is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return next >= s
}

// HighlightType classifies a highlight entry.
type HighlightType string

const (
	HighlightScore    HighlightType = "score"
	HighlightTurnover HighlightType = "turnover"
	HighlightFoul     HighlightType = "foul"
	HighlightTimeout  HighlightType = "timeout"
)

// Highlight is one narrated event in a game's history. Highlights are
// append-only; insertion order is chronological order within the game.
type Highlight struct {
	Quarter     int           `json:"quarter"`
	Clock       string        `json:"clock"`
	Description string        `json:"description"`
	PlayerID    string        `json:"playerId,omitempty"`
	PlayerName  string        `json:"playerName,omitempty"`
	Type        HighlightType `json:"type"`
}

// Game is a persisted game document. It is owned by the Store and mutated
// only through Store.AtomicUpdate.
type Game struct {
	ID         string      `json:"id"`
	Date       time.Time   `json:"date"`
	HomeTeam   string      `json:"homeTeam"`
	AwayTeam   string      `json:"awayTeam"`
	Status     Status      `json:"status"`
	Quarter    int         `json:"quarter"`
	Clock      string      `json:"clock"`
	HomeScore  int         `json:"homeScore"`
	AwayScore  int         `json:"awayScore"`
	Highlights []Highlight `json:"highlights"`
}

// Clone returns a deep copy so callers can never alias store-owned state.
func (g *Game) Clone() *Game {
	dup := *g
	dup.Highlights = make([]Highlight, len(g.Highlights))
	copy(dup.Highlights, g.Highlights)
	return &dup
}
