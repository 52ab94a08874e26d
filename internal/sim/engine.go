// Package sim advances live games one discrete event at a time and
// publishes the results to each game's subscription room.
package sim

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/metrics"
	"github.com/hoopcast/hoopcast/internal/protocol"
	"github.com/hoopcast/hoopcast/internal/stats"
)

// ErrNoPlayersAvailable is returned when the simulation cannot select an
// actor because the player pool is empty. This is reported, never silently
// defaulted.
var ErrNoPlayersAvailable = errors.New("no players available for simulation")

// Publisher is the room fan-out the engine publishes results to.
type Publisher interface {
	Publish(gameID string, msg *protocol.Message)
}

// RosterSource supplies the eligible player pool.
type RosterSource interface {
	Roster(ctx context.Context) (stats.RosterResult, error)
}

const (
	quarterLength  = "12:00"
	finalClock     = "0:00"
	regulationQtrs = 4
)

// Engine drives the live-game simulation. All mutation goes through the
// store's atomic update; broadcasting is a second, best-effort phase that
// is logged on failure and never rolled back.
type Engine struct {
	store  game.Store
	rooms  Publisher
	roster RosterSource
	logger *log.Logger
	clock  quartz.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an engine seeded from seed.
func NewEngine(store game.Store, rooms Publisher, roster RosterSource, logger *log.Logger, clock quartz.Clock, seed int64) *Engine {
	return &Engine{
		store:  store,
		rooms:  rooms,
		roster: roster,
		logger: logger.WithPrefix("sim"),
		clock:  clock,
		rng:    newRand(seed),
	}
}

// Result is what one simulated event produced.
type Result struct {
	Event     EventType      `json:"event"`
	Highlight game.Highlight `json:"highlight"`
	Game      *game.Game     `json:"game"`
}

// ScorePatch is an administrative override. Nil fields are left unchanged.
type ScorePatch struct {
	HomeScore    *int
	AwayScore    *int
	Quarter      *int
	Clock        *string
	Status       *game.Status
	NewHighlight *game.Highlight
}

// SimulateEvent advances gameID by one random event: it picks an event
// type, an actor and a scoring side, applies the score change and the new
// highlight atomically, then publishes the update to the game's room.
// Simulating a scheduled game transitions it to live; simulating a final
// game fails with game.ErrInvalidState and mutates nothing.
func (e *Engine) SimulateEvent(ctx context.Context, gameID string) (*Result, error) {
	g, err := e.store.Get(gameID)
	if err != nil {
		return nil, err
	}
	if g.Status == game.StatusFinal {
		return nil, fmt.Errorf("%w: game %s is final", game.ErrInvalidState, gameID)
	}

	roster, err := e.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	if len(roster.Players) == 0 {
		return nil, ErrNoPlayersAvailable
	}

	e.mu.Lock()
	event := eventTypes[e.rng.IntN(len(eventTypes))]
	player := roster.Players[e.rng.IntN(len(roster.Players))]
	homeSide := e.rng.IntN(2) == 0
	tick := 5 + e.rng.IntN(20)
	e.mu.Unlock()

	team := g.AwayTeam
	if homeSide {
		team = g.HomeTeam
	}

	highlight := game.Highlight{
		Quarter:     g.Quarter,
		Clock:       g.Clock,
		Description: describe(event, player.Name, team),
		PlayerID:    player.ID,
		PlayerName:  player.Name,
		Type:        event.HighlightType(),
	}

	delta := game.Delta{AppendHighlight: &highlight}
	if points := event.Points(); points > 0 {
		if homeSide {
			delta.HomeScoreAdd = points
		} else {
			delta.AwayScoreAdd = points
		}
	}
	if g.Status == game.StatusScheduled {
		live := game.StatusLive
		delta.Status = &live
	}
	e.advanceClock(g, tick, &delta)

	updated, err := e.store.AtomicUpdate(gameID, delta)
	if err != nil {
		return nil, err
	}

	metrics.SimEventsTotal.WithLabelValues(string(event)).Inc()
	e.logger.Debug("Simulated event", "game", gameID, "event", event, "player", player.Name, "home", updated.HomeScore, "away", updated.AwayScore)

	e.publishUpdate(gameID, updated, string(event), &highlight)

	return &Result{Event: event, Highlight: highlight, Game: updated}, nil
}

// UpdateScore applies an administrative override: any subset of score,
// quarter, clock, status and a new highlight, persisted atomically and
// published with the same contract as SimulateEvent.
func (e *Engine) UpdateScore(ctx context.Context, gameID string, patch ScorePatch) (*game.Game, error) {
	_ = ctx

	delta := game.Delta{
		HomeScore:       patch.HomeScore,
		AwayScore:       patch.AwayScore,
		Quarter:         patch.Quarter,
		Clock:           patch.Clock,
		Status:          patch.Status,
		AppendHighlight: patch.NewHighlight,
	}

	updated, err := e.store.AtomicUpdate(gameID, delta)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Score updated", "game", gameID, "home", updated.HomeScore, "away", updated.AwayScore, "status", updated.Status)
	e.publishUpdate(gameID, updated, "score-update", patch.NewHighlight)

	return updated, nil
}

// Run drives the simulation loop until ctx is cancelled: every interval it
// simulates one event for each live game, and promotes the next scheduled
// game when nothing is live. Per-game failures are logged and skipped.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	e.logger.Info("Simulation loop started", "interval", interval)

	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Simulation loop stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	var live []*game.Game
	var nextScheduled *game.Game

	for _, g := range e.store.ListRecent(0) {
		switch g.Status {
		case game.StatusLive:
			live = append(live, g)
		case game.StatusScheduled:
			if nextScheduled == nil || g.Date.Before(nextScheduled.Date) {
				nextScheduled = g
			}
		}
	}

	if len(live) == 0 {
		if nextScheduled == nil {
			return
		}
		status := game.StatusLive
		if _, err := e.UpdateScore(ctx, nextScheduled.ID, ScorePatch{Status: &status}); err != nil {
			e.logger.Warn("Failed to promote scheduled game", "game", nextScheduled.ID, "error", err)
		}
		return
	}

	for _, g := range live {
		if _, err := e.SimulateEvent(ctx, g.ID); err != nil {
			e.logger.Warn("Simulation tick failed", "game", g.ID, "error", err)
		}
	}
}

// advanceClock moves the game clock down by tick seconds, rolling into the
// next quarter at 0:00 and finishing the game after regulation. The new
// values are computed from the snapshot; scalars are last-writer-wins under
// concurrency, which is acceptable for the clock.
func (e *Engine) advanceClock(g *game.Game, tick int, delta *game.Delta) {
	remaining := parseClock(g.Clock) - tick
	switch {
	case remaining > 0:
		clock := formatClock(remaining)
		delta.Clock = &clock
	case g.Quarter >= regulationQtrs:
		clock := finalClock
		final := game.StatusFinal
		delta.Clock = &clock
		delta.Status = &final
	default:
		clock := quarterLength
		quarter := g.Quarter + 1
		delta.Clock = &clock
		delta.Quarter = &quarter
	}
}

// publishUpdate is the broadcast phase: best-effort, at-most-once. The
// persisted state is the source of truth; a lost broadcast is logged by
// the room layer and never rolled back.
func (e *Engine) publishUpdate(gameID string, g *game.Game, event string, highlight *game.Highlight) {
	now := e.clock.Now()

	update, err := protocol.NewMessage(protocol.TypeGameUpdate, protocol.GameUpdateData{
		Type:      string(protocol.TypeGameUpdate),
		Game:      g,
		Event:     event,
		Highlight: highlight,
	}, now)
	if err != nil {
		e.logger.Error("Failed to build game update", "game", gameID, "error", err)
		return
	}
	e.rooms.Publish(gameID, update)

	if highlight == nil {
		return
	}
	highlightMsg, err := protocol.NewMessage(protocol.TypeGameHighlight, protocol.GameHighlightData{
		Type:      string(highlight.Type),
		Highlight: highlight,
	}, now)
	if err != nil {
		e.logger.Error("Failed to build highlight message", "game", gameID, "error", err)
		return
	}
	e.rooms.Publish(gameID, highlightMsg)
}

func parseClock(clock string) int {
	var minutes, seconds int
	if _, err := fmt.Sscanf(clock, "%d:%d", &minutes, &seconds); err != nil {
		return 0
	}
	return minutes*60 + seconds
}

func formatClock(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
