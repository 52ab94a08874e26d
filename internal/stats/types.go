// Package stats fronts the upstream statistics provider with a TTL cache
// and a fallback chain so the rest of the system keeps working when the
// upstream is flaky or offline.
package stats

import "time"

// Player is a normalized roster entry.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	Position string `json:"position"`
}

// StatRecord is one normalized per-player per-game stat line.
type StatRecord struct {
	PlayerID  string    `json:"playerId"`
	GameID    string    `json:"gameId"`
	Date      time.Time `json:"date"`
	Points    int       `json:"points"`
	Rebounds  int       `json:"rebounds"`
	Assists   int       `json:"assists"`
	Steals    int       `json:"steals"`
	Turnovers int       `json:"turnovers"`
	Minutes   int       `json:"minutes"`
}

// RosterSource tags where a roster came from. Fallback data is always
// distinguishable from live data.
type RosterSource string

const (
	SourceLive    RosterSource = "live"
	SourceCached  RosterSource = "cached"
	SourceFixture RosterSource = "fixture"
)

// RosterResult is a roster together with its provenance.
type RosterResult struct {
	Players []Player     `json:"players"`
	Source  RosterSource `json:"source"`
}

// DayFormat is the calendar-day key format used throughout the package.
const DayFormat = "2006-01-02"
