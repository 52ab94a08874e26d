package sim

import (
	"fmt"

	"github.com/hoopcast/hoopcast/internal/game"
)

// EventType is one kind of simulated game event.
type EventType string

const (
	EventMade2    EventType = "made-2"
	EventMissed2  EventType = "missed-2"
	EventMade3    EventType = "made-3"
	EventMissed3  EventType = "missed-3"
	EventFoul     EventType = "foul"
	EventTurnover EventType = "turnover"
)

// eventTypes is the pool SimulateEvent draws from, uniformly.
var eventTypes = []EventType{
	EventMade2,
	EventMissed2,
	EventMade3,
	EventMissed3,
	EventFoul,
	EventTurnover,
}

// Points returns the score value of the event: 2 or 3 for makes, 0 for
// everything else.
func (e EventType) Points() int {
	switch e {
	case EventMade2:
		return 2
	case EventMade3:
		return 3
	default:
		return 0
	}
}

// HighlightType maps the event onto the highlight taxonomy.
func (e EventType) HighlightType() game.HighlightType {
	switch e {
	case EventFoul:
		return game.HighlightFoul
	case EventTurnover:
		return game.HighlightTurnover
	default:
		return game.HighlightScore
	}
}

// describe builds the narrated highlight text for an event.
func describe(e EventType, playerName, team string) string {
	switch e {
	case EventMade2:
		return fmt.Sprintf("%s scores inside for %s", playerName, team)
	case EventMissed2:
		return fmt.Sprintf("%s misses from mid-range", playerName)
	case EventMade3:
		return fmt.Sprintf("%s drains a three for %s", playerName, team)
	case EventMissed3:
		return fmt.Sprintf("%s misses from deep", playerName)
	case EventFoul:
		return fmt.Sprintf("Foul on %s", playerName)
	case EventTurnover:
		return fmt.Sprintf("%s turns the ball over", playerName)
	default:
		return fmt.Sprintf("%s is involved in the play", playerName)
	}
}
